// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package patch holds the data model for conditional file patching: a
// declared set of entries, each naming a live destination file, the
// known-good base content it is expected to match, and the replacement
// content to install when it does.
package patch

import (
	"github.com/juju/errors"
)

// Entry is one declared patch unit. All locators are fully resolved at
// construction time; an Entry is immutable for the lifetime of a run.
type Entry struct {
	// Name is the optional element appended to the destination, base
	// and patch locations. Empty when the locations are already full
	// resource addresses.
	Name string

	// Destination is the live file to be conditionally overwritten.
	// Always a local path.
	Destination Locator

	// Base is the expected pre-patch content of the destination.
	Base Locator

	// Patch is the replacement content installed when the destination
	// matches the base.
	Patch Locator
}

// NewEntry builds an Entry from its textual configuration form. When
// name is non-empty the three locations are treated as directories (or
// URL bases) and the name is appended to each.
func NewEntry(name, destination, base, patch string) (Entry, error) {
	dest, err := ParseLocator(destination)
	if err != nil {
		return Entry{}, errors.Annotate(err, "destination")
	}
	if !dest.IsLocal() {
		return Entry{}, errors.NotValidf("remote destination %q", destination)
	}
	baseLoc, err := ParseLocator(base)
	if err != nil {
		return Entry{}, errors.Annotate(err, "base")
	}
	patchLoc, err := ParseLocator(patch)
	if err != nil {
		return Entry{}, errors.Annotate(err, "patch")
	}
	if name != "" {
		dest = dest.Join(name)
		baseLoc = baseLoc.Join(name)
		patchLoc = patchLoc.Join(name)
	}
	return Entry{
		Name:        name,
		Destination: dest,
		Base:        baseLoc,
		Patch:       patchLoc,
	}, nil
}

// Key returns the stable identity of the entry, used to deduplicate
// repair issues across runs. Two entries patching the same destination
// share a key.
func (e Entry) Key() string {
	return e.Destination.Path()
}
