// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package patcher_test

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/hostpatch/hostpatch/internal/patcher"
)

type RestartSuite struct {
	testing.IsolationSuite

	host *stubHost
}

var _ = gc.Suite(&RestartSuite{})

func (s *RestartSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.host = &stubHost{Stub: &testing.Stub{}}
}

type stubHost struct {
	*testing.Stub
}

func (s *stubHost) RequestRestart(_ context.Context) error {
	s.AddCall("RequestRestart")
	return s.NextErr()
}

func (s *RestartSuite) newCoordinator(c *gc.C) *patcher.RestartCoordinator {
	coordinator, err := patcher.NewRestartCoordinator(s.host, loggo.GetLogger("test.patcher"))
	c.Assert(err, jc.ErrorIsNil)
	return coordinator
}

func (s *RestartSuite) TestNewValidates(c *gc.C) {
	_, err := patcher.NewRestartCoordinator(nil, loggo.GetLogger("test.patcher"))
	c.Check(err, jc.ErrorIs, errors.NotValid)

	_, err = patcher.NewRestartCoordinator(s.host, nil)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *RestartSuite) TestRestartRequested(c *gc.C) {
	coordinator := s.newCoordinator(c)
	err := coordinator.MaybeRestart(context.Background(), true, true)
	c.Assert(err, jc.ErrorIsNil)
	s.host.CheckCallNames(c, "RequestRestart")
}

func (s *RestartSuite) TestNoRestartWhenNothingApplied(c *gc.C) {
	coordinator := s.newCoordinator(c)
	err := coordinator.MaybeRestart(context.Background(), false, true)
	c.Assert(err, jc.ErrorIsNil)
	s.host.CheckCalls(c, nil)
}

func (s *RestartSuite) TestNoRestartWhenDisabled(c *gc.C) {
	coordinator := s.newCoordinator(c)
	err := coordinator.MaybeRestart(context.Background(), true, false)
	c.Assert(err, jc.ErrorIsNil)
	s.host.CheckCalls(c, nil)
}

func (s *RestartSuite) TestRestartRequestedAtMostOnce(c *gc.C) {
	coordinator := s.newCoordinator(c)
	for i := 0; i < 3; i++ {
		err := coordinator.MaybeRestart(context.Background(), true, true)
		c.Assert(err, jc.ErrorIsNil)
	}
	s.host.CheckCallNames(c, "RequestRestart")
}

func (s *RestartSuite) TestFailedRequestCanBeRetried(c *gc.C) {
	s.host.SetErrors(errors.New("service unavailable"))

	coordinator := s.newCoordinator(c)
	err := coordinator.MaybeRestart(context.Background(), true, true)
	c.Check(err, gc.ErrorMatches, "requesting host restart: service unavailable")

	// The request never went through, so a later run may try again.
	err = coordinator.MaybeRestart(context.Background(), true, true)
	c.Assert(err, jc.ErrorIsNil)
	s.host.CheckCallNames(c, "RequestRestart", "RequestRestart")
}
