// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package filepatcher runs the patch engine on the host's schedule:
// once after a configured startup delay, and again on every explicit
// reload request. There is no periodic re-run. A reload during the
// startup wait cancels the remaining delay; a reload while a run is in
// progress is coalesced into at most one follow-up run that starts
// only after the current run completes.
package filepatcher

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/hostpatch/hostpatch/core/patch"
	"github.com/hostpatch/hostpatch/internal/config"
)

// readyRecheckInterval is how often the host readiness check is
// retried before a run is allowed to start.
const readyRecheckInterval = time.Minute

// Logger holds the methods required to log messages.
type Logger interface {
	Errorf(string, ...interface{})
	Warningf(string, ...interface{})
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
}

// Engine verifies and applies the declared entries.
type Engine interface {
	Run(ctx context.Context, entries []patch.Entry) (patch.Results, error)
}

// Restarter decides whether a completed run warrants a host restart.
type Restarter interface {
	MaybeRestart(ctx context.Context, didApply, restartEnabled bool) error
}

// SettingsSource supplies fresh settings for reload-triggered runs.
type SettingsSource interface {
	Load(ctx context.Context) (config.Settings, error)
}

// Config holds the dependencies and initial state of the worker.
type Config struct {
	// Clock supplies the startup-delay and readiness-recheck timers.
	Clock clock.Clock

	// Logger logs run progress.
	Logger Logger

	// Engine performs the actual patching.
	Engine Engine

	// Restarter is handed the aggregate result of every run.
	Restarter Restarter

	// Source is consulted on reload, so that a reload always acts on
	// the settings as currently declared rather than as loaded at
	// startup.
	Source SettingsSource

	// Settings is the validated configuration for the startup run.
	Settings config.Settings

	// Ready optionally defers a run while the host is busy with
	// something patching would interfere with. It is re-checked every
	// minute until it reports true. A nil Ready never defers.
	Ready func(ctx context.Context) bool
}

// Validate ensures the configuration is complete.
func (config Config) Validate() error {
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.Engine == nil {
		return errors.NotValidf("nil Engine")
	}
	if config.Restarter == nil {
		return errors.NotValidf("nil Restarter")
	}
	if config.Source == nil {
		return errors.NotValidf("nil Source")
	}
	return nil
}

// PatchWorker owns the run schedule. It is a worker.Worker with one
// extra entry point, Reload.
type PatchWorker struct {
	catacomb catacomb.Catacomb
	config   Config

	// reloads carries at most one pending trigger; further reload
	// requests while one is pending are coalesced.
	reloads chan struct{}
}

// NewWorker starts a patch worker based on the given configuration.
func NewWorker(config Config) (*PatchWorker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &PatchWorker{
		config:  config,
		reloads: make(chan struct{}, 1),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Reload requests an immediate run. During the startup wait it cancels
// the remaining delay; while a run is in progress it schedules exactly
// one follow-up run. Reload never blocks.
func (w *PatchWorker) Reload() {
	select {
	case w.reloads <- struct{}{}:
	default:
	}
}

// Kill implements worker.Worker.
func (w *PatchWorker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait implements worker.Worker.
func (w *PatchWorker) Wait() error {
	return w.catacomb.Wait()
}

func (w *PatchWorker) loop() error {
	ctx := w.catacomb.Context(context.Background())
	settings := w.config.Settings

	// The one startup-delayed run. A reload request arriving before
	// the delay elapses starts the run immediately instead.
	reloaded := false
	timer := w.config.Clock.NewTimer(settings.Delay)
	defer timer.Stop()
	select {
	case <-w.catacomb.Dying():
		return w.catacomb.ErrDying()
	case <-timer.Chan():
	case <-w.reloads:
		reloaded = true
	}

	for {
		run := true
		if reloaded {
			loaded, err := w.config.Source.Load(ctx)
			if err != nil {
				w.config.Logger.Errorf("reloading settings, skipping run: %v", err)
				run = false
			} else {
				settings = loaded
			}
		}
		if run {
			if err := w.waitReady(ctx); err != nil {
				return errors.Trace(err)
			}
			if err := w.runOnce(ctx, settings); err != nil {
				return errors.Trace(err)
			}
		}

		// Idle until the next reload request. No periodic re-runs.
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case <-w.reloads:
			reloaded = true
		}
	}
}

// waitReady blocks until the host reports it is ready for patching,
// rechecking once a minute.
func (w *PatchWorker) waitReady(ctx context.Context) error {
	if w.config.Ready == nil {
		return nil
	}
	for !w.config.Ready(ctx) {
		w.config.Logger.Infof("host is not ready for patching, checking again in %v", readyRecheckInterval)
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case <-w.config.Clock.After(readyRecheckInterval):
		}
	}
	return nil
}

func (w *PatchWorker) runOnce(ctx context.Context, settings config.Settings) error {
	w.config.Logger.Debugf("running %d patch entries", len(settings.Entries))
	results, err := w.config.Engine.Run(ctx, settings.Entries)
	if err != nil {
		// The engine only errors on context cancellation, which means
		// the worker is already dying.
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		default:
			return errors.Trace(err)
		}
	}
	if err := w.config.Restarter.MaybeRestart(ctx, results.Applied(), settings.Restart); err != nil {
		w.config.Logger.Errorf("restart request failed: %v", err)
	}
	return nil
}
