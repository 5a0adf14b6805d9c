// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/hostpatch/hostpatch/internal/config"
)

// prefixResolver expands the recognised symbolic prefixes from the
// directories given on the command line.
type prefixResolver map[string]string

// Resolve implements config.PathResolver.
func (r prefixResolver) Resolve(symbol string) (string, error) {
	dir := r[symbol]
	if dir == "" {
		return "", errors.Errorf("no directory configured for prefix %q (set --%s-dir)", symbol, symbol)
	}
	return dir, nil
}

// settingsFile re-reads the settings file on reload.
type settingsFile struct {
	path     string
	resolver config.PathResolver
}

// Load implements filepatcher.SettingsSource.
func (s settingsFile) Load(_ context.Context) (config.Settings, error) {
	settings, err := config.Read(s.path, s.resolver)
	return settings, errors.Trace(err)
}

// loggedIssues is the daemon's repair-issue registry: a standing issue
// is a warning record, deduplicated per entry key until cleared.
type loggedIssues struct {
	logger loggo.Logger

	mu     sync.Mutex
	raised set.Strings
}

func newLoggedIssues(logger loggo.Logger) *loggedIssues {
	return &loggedIssues{
		logger: logger,
		raised: set.NewStrings(),
	}
}

// RaiseMismatch implements patcher.IssueReporter.
func (i *loggedIssues) RaiseMismatch(key, details string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.raised.Contains(key) {
		return
	}
	i.raised.Add(key)
	i.logger.Warningf("repair issue for %q: %s", key, details)
}

// ClearMismatch implements patcher.IssueReporter.
func (i *loggedIssues) ClearMismatch(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.raised.Contains(key) {
		return
	}
	i.raised.Remove(key)
	i.logger.Infof("repair issue for %q cleared", key)
}

// commandHostControl restarts the host application by running a
// configured shell command.
type commandHostControl struct {
	command string
	logger  loggo.Logger
}

// RequestRestart implements patcher.HostControl.
func (h *commandHostControl) RequestRestart(ctx context.Context) error {
	if h.command == "" {
		h.logger.Warningf("no restart command configured; restart the host application manually")
		return nil
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", h.command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Annotatef(err, "running restart command %q", h.command)
	}
	return nil
}
