// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package fetcher resolves content locators into raw bytes, uniformly
// over local filesystem paths and remote URLs.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/juju/errors"
	jujuhttp "github.com/juju/http/v2"
	"github.com/juju/loggo"

	"github.com/hostpatch/hostpatch/core/patch"
)

// DefaultTimeout bounds a single remote fetch. There are no retries at
// this layer; one attempt per run is the contract.
const DefaultTimeout = 30 * time.Second

// HTTPClient issues outbound GET requests. *jujuhttp.Client implements
// this interface.
type HTTPClient interface {
	Get(ctx context.Context, path string) (*http.Response, error)
}

// Logger holds the methods required to log messages.
type Logger interface {
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// DefaultHTTPClient returns the HTTP client used for remote locators
// when the caller does not supply one.
func DefaultHTTPClient(logger loggo.Logger) *jujuhttp.Client {
	return jujuhttp.NewClient(
		jujuhttp.WithLogger(logger),
	)
}

// Config holds the dependencies of a ContentFetcher.
type Config struct {
	// Client performs remote retrievals.
	Client HTTPClient

	// Timeout bounds each remote retrieval. Zero means DefaultTimeout.
	Timeout time.Duration

	// Logger is used to trace fetches.
	Logger Logger
}

// Validate ensures the configuration is complete.
func (config Config) Validate() error {
	if config.Client == nil {
		return errors.NotValidf("nil Client")
	}
	if config.Timeout < 0 {
		return errors.NotValidf("negative Timeout")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// ContentFetcher reads whole content from local paths and remote URLs.
type ContentFetcher struct {
	client  HTTPClient
	timeout time.Duration
	logger  Logger
}

// NewContentFetcher returns a ContentFetcher based on the given
// configuration.
func NewContentFetcher(config Config) (*ContentFetcher, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &ContentFetcher{
		client:  config.Client,
		timeout: timeout,
		logger:  config.Logger,
	}, nil
}

// Fetch resolves the locator into its full content. Local paths that do
// not exist return an error satisfying errors.NotFound; every other
// failure is annotated with the locator it concerns.
func (f *ContentFetcher) Fetch(ctx context.Context, loc patch.Locator) ([]byte, error) {
	if loc.IsLocal() {
		return f.fetchLocal(loc)
	}
	return f.fetchURL(ctx, loc)
}

func (f *ContentFetcher) fetchLocal(loc patch.Locator) ([]byte, error) {
	content, err := os.ReadFile(loc.Path())
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("file %q", loc.Path())
	}
	if err != nil {
		return nil, errors.Annotatef(err, "reading %q", loc.Path())
	}
	f.logger.Tracef("read %d bytes from %q", len(content), loc.Path())
	return content, nil
}

func (f *ContentFetcher) fetchURL(ctx context.Context, loc patch.Locator) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.Get(ctx, loc.String())
	if err != nil {
		return nil, errors.Annotatef(err, "fetching %q", loc)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("cannot access URL %q, %q", loc, resp.Status)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching %q", loc)
	}
	f.logger.Debugf("fetched %d bytes from %q", len(content), loc)
	return content, nil
}
