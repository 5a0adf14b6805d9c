// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads and validates the declared patch settings. All
// validation happens here, at load time; the engine never sees a
// malformed entry. Symbolic destination prefixes are resolved exactly
// once, when the settings are loaded.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/schema"
	goyaml "gopkg.in/yaml.v2"

	"github.com/hostpatch/hostpatch/core/patch"
)

// DefaultDelaySeconds is the startup delay applied when the settings
// file does not specify one.
const DefaultDelaySeconds = 300

// Symbolic path prefixes recognised at the start of local locations.
// Their expansion is known only to the host environment.
const (
	PrefixSitePackages  = "site-packages"
	PrefixHomeAssistant = "homeassistant"
)

// PathResolver expands a recognised symbolic prefix into the absolute
// path it stands for on this host.
type PathResolver interface {
	Resolve(symbol string) (string, error)
}

// Settings is the validated configuration consumed by the worker.
type Settings struct {
	// Delay is how long after startup the first run happens.
	Delay time.Duration

	// Restart enables requesting a host restart after a run that
	// applied at least one patch.
	Restart bool

	// Entries are the declared patches, in declaration order.
	Entries []patch.Entry
}

var configChecker = schema.FieldMap(
	schema.Fields{
		"delay":   schema.ForceInt(),
		"restart": schema.Bool(),
		"files": schema.List(schema.FieldMap(
			schema.Fields{
				"name":        schema.String(),
				"destination": schema.String(),
				"base":        schema.String(),
				"patch":       schema.String(),
			},
			schema.Defaults{
				"name": schema.Omit,
			},
		)),
	},
	schema.Defaults{
		"delay":   DefaultDelaySeconds,
		"restart": true,
		"files":   schema.Omit,
	},
)

// Read loads, parses and validates the settings file at the given path.
func Read(path string, resolver PathResolver) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Annotatef(err, "reading settings from %q", path)
	}
	settings, err := Parse(data, resolver)
	if err != nil {
		return Settings{}, errors.Annotatef(err, "settings in %q", path)
	}
	return settings, nil
}

// Parse validates raw YAML settings content.
func Parse(data []byte, resolver PathResolver) (Settings, error) {
	if resolver == nil {
		return Settings{}, errors.NotValidf("nil resolver")
	}
	var raw interface{}
	if err := goyaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, errors.Annotate(err, "parsing YAML")
	}
	coerced, err := configChecker.Coerce(raw, nil)
	if err != nil {
		return Settings{}, errors.Annotate(err, "schema check failed")
	}
	valid := coerced.(map[string]interface{})

	delay := valid["delay"].(int)
	if delay < 0 {
		return Settings{}, errors.NotValidf("negative delay %d", delay)
	}
	settings := Settings{
		Delay:   time.Duration(delay) * time.Second,
		Restart: valid["restart"].(bool),
	}

	files, _ := valid["files"].([]interface{})
	for i, file := range files {
		attrs := file.(map[string]interface{})
		entry, err := newEntry(attrs, resolver)
		if err != nil {
			return Settings{}, errors.Annotatef(err, "file %d", i)
		}
		settings.Entries = append(settings.Entries, entry)
	}
	return settings, nil
}

func newEntry(attrs map[string]interface{}, resolver PathResolver) (patch.Entry, error) {
	name, _ := attrs["name"].(string)

	destination, err := expandPrefix(attrs["destination"].(string), resolver)
	if err != nil {
		return patch.Entry{}, errors.Annotate(err, "destination")
	}
	base, err := expandPrefix(attrs["base"].(string), resolver)
	if err != nil {
		return patch.Entry{}, errors.Annotate(err, "base")
	}
	patchLocation, err := expandPrefix(attrs["patch"].(string), resolver)
	if err != nil {
		return patch.Entry{}, errors.Annotate(err, "patch")
	}

	entry, err := patch.NewEntry(name, destination, base, patchLocation)
	if err != nil {
		return patch.Entry{}, errors.Trace(err)
	}
	return entry, nil
}

// expandPrefix resolves a recognised symbolic prefix at the start of a
// local location. URLs pass through untouched. Both the bare prefix
// form ("site-packages/...") and the braced form ("{site-packages}/...")
// are accepted.
func expandPrefix(location string, resolver PathResolver) (string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return location, nil
	}
	first, rest, found := strings.Cut(location, "/")
	symbol := strings.TrimSuffix(strings.TrimPrefix(first, "{"), "}")
	if symbol != PrefixSitePackages && symbol != PrefixHomeAssistant {
		return location, nil
	}
	expanded, err := resolver.Resolve(symbol)
	if err != nil {
		return "", errors.Annotatef(err, "resolving prefix %q", symbol)
	}
	if !found {
		return expanded, nil
	}
	return expanded + "/" + rest, nil
}
