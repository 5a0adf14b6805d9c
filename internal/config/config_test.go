// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/hostpatch/hostpatch/internal/config"
)

type ConfigSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&ConfigSuite{})

// mapResolver resolves symbolic prefixes from a fixed table.
type mapResolver map[string]string

func (r mapResolver) Resolve(symbol string) (string, error) {
	path, ok := r[symbol]
	if !ok {
		return "", errors.NotFoundf("prefix %q", symbol)
	}
	return path, nil
}

var testResolver = mapResolver{
	config.PrefixSitePackages:  "/usr/lib/python3/site-packages",
	config.PrefixHomeAssistant: "/usr/lib/python3/site-packages/homeassistant",
}

func (s *ConfigSuite) TestDefaults(c *gc.C) {
	settings, err := config.Parse(nil, testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings.Delay, gc.Equals, 300*time.Second)
	c.Check(settings.Restart, jc.IsTrue)
	c.Check(settings.Entries, gc.HasLen, 0)
}

func (s *ConfigSuite) TestExplicitValues(c *gc.C) {
	settings, err := config.Parse([]byte(`
delay: 60
restart: false
`), testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings.Delay, gc.Equals, time.Minute)
	c.Check(settings.Restart, jc.IsFalse)
}

func (s *ConfigSuite) TestZeroDelay(c *gc.C) {
	settings, err := config.Parse([]byte("delay: 0"), testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings.Delay, gc.Equals, time.Duration(0))
}

func (s *ConfigSuite) TestNegativeDelay(c *gc.C) {
	_, err := config.Parse([]byte("delay: -5"), testResolver)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *ConfigSuite) TestNilResolver(c *gc.C) {
	_, err := config.Parse(nil, nil)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *ConfigSuite) TestFiles(c *gc.C) {
	settings, err := config.Parse([]byte(`
files:
  - destination: /opt/host/lib/thing.py
    base: /srv/bases/thing.py
    patch: https://example.com/fixes/thing.py
  - name: other.py
    destination: /opt/host/lib
    base: https://example.com/bases
    patch: https://example.com/fixes
`), testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(settings.Entries, gc.HasLen, 2)

	c.Check(settings.Entries[0].Destination.Path(), gc.Equals, "/opt/host/lib/thing.py")
	c.Check(settings.Entries[0].Base.Path(), gc.Equals, "/srv/bases/thing.py")
	c.Check(settings.Entries[0].Patch.String(), gc.Equals, "https://example.com/fixes/thing.py")

	c.Check(settings.Entries[1].Name, gc.Equals, "other.py")
	c.Check(settings.Entries[1].Destination.Path(), gc.Equals, "/opt/host/lib/other.py")
	c.Check(settings.Entries[1].Base.String(), gc.Equals, "https://example.com/bases/other.py")
	c.Check(settings.Entries[1].Patch.String(), gc.Equals, "https://example.com/fixes/other.py")
}

func (s *ConfigSuite) TestFilesKeepDeclarationOrder(c *gc.C) {
	settings, err := config.Parse([]byte(`
files:
  - destination: /z/last.py
    base: /b/last.py
    patch: /p/last.py
  - destination: /a/first.py
    base: /b/first.py
    patch: /p/first.py
`), testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(settings.Entries, gc.HasLen, 2)
	c.Check(settings.Entries[0].Destination.Path(), gc.Equals, "/z/last.py")
	c.Check(settings.Entries[1].Destination.Path(), gc.Equals, "/a/first.py")
}

func (s *ConfigSuite) TestSymbolicPrefixes(c *gc.C) {
	settings, err := config.Parse([]byte(`
files:
  - destination: site-packages/aiofiles/os.py
    base: homeassistant/helpers/event.py
    patch: https://example.com/fixes/os.py
`), testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(settings.Entries, gc.HasLen, 1)
	c.Check(settings.Entries[0].Destination.Path(), gc.Equals,
		"/usr/lib/python3/site-packages/aiofiles/os.py")
	c.Check(settings.Entries[0].Base.Path(), gc.Equals,
		"/usr/lib/python3/site-packages/homeassistant/helpers/event.py")
}

func (s *ConfigSuite) TestBracedPrefixForm(c *gc.C) {
	settings, err := config.Parse([]byte(`
files:
  - destination: "{site-packages}/aiofiles/os.py"
    base: /srv/bases/os.py
    patch: /srv/fixes/os.py
`), testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings.Entries[0].Destination.Path(), gc.Equals,
		"/usr/lib/python3/site-packages/aiofiles/os.py")
}

func (s *ConfigSuite) TestUnresolvablePrefix(c *gc.C) {
	_, err := config.Parse([]byte(`
files:
  - destination: site-packages/aiofiles/os.py
    base: /srv/bases/os.py
    patch: /srv/fixes/os.py
`), mapResolver{})
	c.Check(err, gc.ErrorMatches, `file 0: destination: resolving prefix "site-packages": .*`)
}

func (s *ConfigSuite) TestMissingRequiredField(c *gc.C) {
	_, err := config.Parse([]byte(`
files:
  - destination: /opt/host/lib/thing.py
    base: /srv/bases/thing.py
`), testResolver)
	c.Check(err, gc.ErrorMatches, "schema check failed: .*patch.*")
}

func (s *ConfigSuite) TestRemoteDestinationRejected(c *gc.C) {
	_, err := config.Parse([]byte(`
files:
  - destination: https://example.com/nope.py
    base: /srv/bases/thing.py
    patch: /srv/fixes/thing.py
`), testResolver)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *ConfigSuite) TestMalformedYAML(c *gc.C) {
	_, err := config.Parse([]byte("{{nope"), testResolver)
	c.Check(err, gc.ErrorMatches, "parsing YAML: .*")
}

func (s *ConfigSuite) TestRead(c *gc.C) {
	path := filepath.Join(c.MkDir(), "hostpatch.yaml")
	err := os.WriteFile(path, []byte(`
delay: 10
files:
  - destination: /opt/host/lib/thing.py
    base: /srv/bases/thing.py
    patch: /srv/fixes/thing.py
`), 0644)
	c.Assert(err, jc.ErrorIsNil)

	settings, err := config.Read(path, testResolver)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings.Delay, gc.Equals, 10*time.Second)
	c.Check(settings.Entries, gc.HasLen, 1)
}

func (s *ConfigSuite) TestReadMissingFile(c *gc.C) {
	_, err := config.Read(filepath.Join(c.MkDir(), "absent.yaml"), testResolver)
	c.Check(err, gc.ErrorMatches, `reading settings from .*`)
}
