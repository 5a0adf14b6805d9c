// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package patcher

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

// HostControl is the narrow surface through which the host application
// is asked to restart itself.
type HostControl interface {
	RequestRestart(ctx context.Context) error
}

// RestartCoordinator decides whether a completed run warrants a host
// restart. A restart is requested at most once per process lifetime,
// however many runs apply patches, so a reload storm can never turn
// into a restart storm.
type RestartCoordinator struct {
	host   HostControl
	logger Logger

	mu        sync.Mutex
	requested bool
}

// NewRestartCoordinator returns a RestartCoordinator that requests
// restarts through the given host control.
func NewRestartCoordinator(host HostControl, logger Logger) (*RestartCoordinator, error) {
	if host == nil {
		return nil, errors.NotValidf("nil HostControl")
	}
	if logger == nil {
		return nil, errors.NotValidf("nil Logger")
	}
	return &RestartCoordinator{host: host, logger: logger}, nil
}

// MaybeRestart requests a host restart if this run applied anything,
// restarts are enabled, and no restart has been requested yet this
// process lifetime.
func (r *RestartCoordinator) MaybeRestart(ctx context.Context, didApply, restartEnabled bool) error {
	if !didApply || !restartEnabled {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requested {
		r.logger.Debugf("restart already requested this session")
		return nil
	}
	r.logger.Warningf("requesting host restart")
	if err := r.host.RequestRestart(ctx); err != nil {
		return errors.Annotate(err, "requesting host restart")
	}
	r.requested = true
	return nil
}
