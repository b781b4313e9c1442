// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package platform

import "context"

// starter is satisfied by every component whose background loops are
// launched by a non-blocking Start(ctx) that returns immediately once its
// goroutines are running. Adapting these into suture.Service (Serve(ctx)
// error, blocking until ctx is done) mirrors the teacher's
// supervisor/services package, which wraps *websocket.Hub the same way
// for a hub whose own run loop isn't itself a suture.Service.
type starter interface {
	Start(ctx context.Context)
}

// starterService adapts a starter into suture.Service so it can be added
// to a SupervisorTree layer directly.
type starterService struct {
	name string
	s    starter
}

func newStarterService(name string, s starter) *starterService {
	return &starterService{name: name, s: s}
}

// Serve implements suture.Service: launch the wrapped component's
// goroutines, then block until the tree cancels ctx.
func (s *starterService) Serve(ctx context.Context) error {
	s.s.Start(ctx)
	<-ctx.Done()
	return ctx.Err()
}

func (s *starterService) String() string {
	return s.name
}

// errStarter is satisfied by a component whose Start already returns an
// error from its synchronous bootstrap step (e.g. the scaling
// coordinator's initial instance spawn) before launching background
// loops and returning.
type errStarter interface {
	Start(ctx context.Context) error
}

type errStarterService struct {
	name string
	s    errStarter
}

func newErrStarterService(name string, s errStarter) *errStarterService {
	return &errStarterService{name: name, s: s}
}

func (s *errStarterService) Serve(ctx context.Context) error {
	if err := s.s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *errStarterService) String() string {
	return s.name
}
