// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package patch

import (
	"net/url"
	"path"
	"path/filepath"

	"github.com/juju/errors"
)

// LocatorKind discriminates the two ways content can be addressed.
type LocatorKind string

const (
	// LocalPath addresses content on the local filesystem.
	LocalPath LocatorKind = "local"

	// RemoteURL addresses content behind an HTTP or HTTPS URL.
	RemoteURL LocatorKind = "url"
)

// Locator is a resolved content address. The kind is fixed when the
// locator is parsed and never re-derived from the string form again.
type Locator struct {
	kind LocatorKind
	path string
	url  *url.URL
}

// ParseLocator interprets the given string as either a remote URL or a
// local filesystem path. Only http and https schemes are recognised as
// remote; anything else, including Windows-style drive letters, is
// treated as a local path.
func ParseLocator(s string) (Locator, error) {
	if s == "" {
		return Locator{}, errors.NotValidf("empty locator")
	}
	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if u.Host == "" {
			return Locator{}, errors.NotValidf("URL %q without a host", s)
		}
		return Locator{kind: RemoteURL, url: u}, nil
	}
	return Locator{kind: LocalPath, path: s}, nil
}

// MustParseLocator is a ParseLocator that panics on error, for use in
// tests and static declarations.
func MustParseLocator(s string) Locator {
	loc, err := ParseLocator(s)
	if err != nil {
		panic(err)
	}
	return loc
}

// Kind returns the locator's discriminator.
func (l Locator) Kind() LocatorKind {
	return l.kind
}

// IsLocal reports whether the locator addresses the local filesystem.
func (l Locator) IsLocal() bool {
	return l.kind == LocalPath
}

// Path returns the filesystem path of a local locator. It is empty for
// remote locators.
func (l Locator) Path() string {
	return l.path
}

// URL returns the parsed URL of a remote locator, or nil for local ones.
func (l Locator) URL() *url.URL {
	return l.url
}

// String returns the original textual form of the locator.
func (l Locator) String() string {
	if l.kind == RemoteURL {
		return l.url.String()
	}
	return l.path
}

// Join returns a locator addressing the named element beneath this one.
// Local locators join with the platform path separator, remote locators
// extend the URL path.
func (l Locator) Join(name string) Locator {
	if l.kind == RemoteURL {
		u := *l.url
		u.Path = path.Join(u.Path, name)
		return Locator{kind: RemoteURL, url: &u}
	}
	return Locator{kind: LocalPath, path: filepath.Join(l.path, name)}
}
