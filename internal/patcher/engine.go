// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package patcher implements the verification-and-apply engine: for
// each declared entry it checks that the live destination file still
// matches its known-good base and, when it does, atomically replaces it
// with the patch content. Mismatches are reported to the host as repair
// issues; no failure in one entry ever aborts the rest of the run.
package patcher

import (
	"bytes"
	"context"
	"os"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"golang.org/x/sync/errgroup"

	"github.com/hostpatch/hostpatch/core/patch"
)

// Fetcher resolves a content locator into raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, loc patch.Locator) ([]byte, error)
}

// IssueReporter is the host's repair-issue registry. Issues are keyed
// by entry identity: raising the same key twice must not create a
// duplicate, and clearing an unknown key is a no-op.
type IssueReporter interface {
	RaiseMismatch(key, details string)
	ClearMismatch(key string)
}

// Logger holds the methods required to log messages.
type Logger interface {
	Errorf(string, ...interface{})
	Warningf(string, ...interface{})
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
}

// EngineConfig holds the dependencies of an Engine.
type EngineConfig struct {
	Fetcher Fetcher
	Issues  IssueReporter
	Logger  Logger
}

// Validate ensures the configuration is complete.
func (config EngineConfig) Validate() error {
	if config.Fetcher == nil {
		return errors.NotValidf("nil Fetcher")
	}
	if config.Issues == nil {
		return errors.NotValidf("nil Issues")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Engine runs the declared entries against the live filesystem.
type Engine struct {
	config EngineConfig
}

// NewEngine returns an Engine based on the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Engine{config: config}, nil
}

// Run processes every entry in declaration order and returns the
// per-entry results. The error return covers context cancellation
// only; entry-level failures are recorded in the results and logged.
func (e *Engine) Run(ctx context.Context, entries []patch.Entry) (patch.Results, error) {
	results := make(patch.Results, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, errors.Trace(err)
		}
		result := e.runOne(ctx, entry)
		e.report(entry, result)
		results = append(results, result)
	}
	if applied := results.Counts()[patch.Applied]; applied > 0 {
		plural := "s were"
		if applied == 1 {
			plural = " was"
		}
		e.config.Logger.Warningf("%d file%s patched", applied, plural)
	}
	return results, nil
}

// report translates an entry result into its host-visible trace: a log
// record always, plus the raising or clearing of the entry's repair
// issue where the result warrants it.
func (e *Engine) report(entry patch.Entry, result patch.EntryResult) {
	key := entry.Key()
	switch result.Result {
	case patch.Applied:
		e.config.Logger.Warningf(
			"destination file %q was updated by the patch file %q",
			entry.Destination, entry.Patch)
		e.config.Issues.ClearMismatch(key)
	case patch.Unchanged:
		e.config.Logger.Debugf(
			"destination file %q is identical to the patch file %q",
			entry.Destination, entry.Patch)
		e.config.Issues.ClearMismatch(key)
	case patch.Mismatch:
		e.config.Logger.Errorf(
			"destination file %q is different than its base %q",
			entry.Destination, entry.Base)
		e.config.Issues.RaiseMismatch(key, result.Err.Error())
	case patch.Missing:
		e.config.Logger.Debugf(
			"destination file %q does not exist, nothing to patch",
			entry.Destination)
	case patch.Failed:
		e.config.Logger.Errorf(
			"patching %q: %v", entry.Destination, result.Err)
	}
}

// runOne takes a single entry to its terminal state for this run.
func (e *Engine) runOne(ctx context.Context, entry patch.Entry) patch.EntryResult {
	var (
		destContent  []byte
		baseContent  []byte
		patchContent []byte
		destMissing  bool
	)

	// All three sources are fetched together; a failure in one cancels
	// the other in-flight retrievals for this entry only.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		content, err := e.config.Fetcher.Fetch(groupCtx, entry.Destination)
		if errors.Is(err, errors.NotFound) {
			destMissing = true
			return nil
		}
		destContent = content
		return errors.Annotate(err, "destination")
	})
	group.Go(func() error {
		content, err := e.config.Fetcher.Fetch(groupCtx, entry.Base)
		baseContent = content
		return errors.Annotate(err, "base")
	})
	group.Go(func() error {
		content, err := e.config.Fetcher.Fetch(groupCtx, entry.Patch)
		patchContent = content
		return errors.Annotate(err, "patch")
	})
	if err := group.Wait(); err != nil {
		return patch.EntryResult{Entry: entry, Result: patch.Failed, Err: errors.Trace(err)}
	}

	if destMissing {
		return patch.EntryResult{Entry: entry, Result: patch.Missing}
	}
	if bytes.Equal(destContent, patchContent) {
		return patch.EntryResult{Entry: entry, Result: patch.Unchanged}
	}
	if !bytes.Equal(destContent, baseContent) {
		return patch.EntryResult{
			Entry:  entry,
			Result: patch.Mismatch,
			Err: errors.Errorf(
				"destination %q does not match base %q", entry.Destination, entry.Base),
		}
	}
	if err := e.apply(entry, patchContent); err != nil {
		return patch.EntryResult{Entry: entry, Result: patch.Failed, Err: errors.Trace(err)}
	}
	return patch.EntryResult{Entry: entry, Result: patch.Applied}
}

// apply replaces the destination with the patch content. The write goes
// to a temporary file that is renamed into place, so a crash mid-write
// never leaves a corrupted destination. The destination's existing file
// mode is preserved.
func (e *Engine) apply(entry patch.Entry, content []byte) error {
	target := entry.Destination.Path()
	info, err := os.Stat(target)
	if err != nil {
		return errors.Annotatef(err, "inspecting %q", target)
	}
	if err := utils.AtomicWriteFile(target, content, info.Mode().Perm()); err != nil {
		return errors.Annotatef(err, "writing %q", target)
	}
	return nil
}
