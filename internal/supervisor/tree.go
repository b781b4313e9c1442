// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production-ready defaults.
// These values match suture's built-in defaults per pkg.go.dev documentation.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// SupervisorTree manages the hierarchical supervisor structure for the
// routing fabric.
//
// The tree is organized into four layers:
//   - bus: the event bus priority-queue workers and its maintenance loop (C1)
//   - router: router instances and the scaling coordinator (C4/C5/C6)
//   - reliability: health checker loops and dead-letter analyzers/cleanup (C8/C9)
//   - background: pub-sub retry processors and any other ancillary loop (C3)
//
// This structure provides failure isolation - a crash in the reliability
// layer won't affect the router layer's ability to keep delivering messages.
type SupervisorTree struct {
	root        *suture.Supervisor
	bus         *suture.Supervisor
	router      *suture.Supervisor
	reliability *suture.Supervisor
	background  *suture.Supervisor
	logger      *slog.Logger
	config      TreeConfig
}

// NewSupervisorTree creates a new supervisor tree with the given configuration.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	// Apply defaults for zero values
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	// IMPORTANT: the event-hook API is (&Handler{Logger: logger}).MustHook(),
	// not sutureslog.EventHook(logger), which does not exist.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Child supervisors use the same failure parameters and inherit the
	// EventHook when added to the root.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("routing-fabric", rootSpec)
	bus := suture.New("bus-layer", childSpec)
	router := suture.New("router-layer", childSpec)
	reliability := suture.New("reliability-layer", childSpec)
	background := suture.New("background-layer", childSpec)

	root.Add(bus)
	root.Add(router)
	root.Add(reliability)
	root.Add(background)

	return &SupervisorTree{
		root:        root,
		bus:         bus,
		router:      router,
		reliability: reliability,
		background:  background,
		logger:      logger,
		config:      config,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddBusService adds a service to the event-bus layer supervisor.
// Use this for per-priority worker pools and the event bus maintenance loop.
func (t *SupervisorTree) AddBusService(svc suture.Service) suture.ServiceToken {
	return t.bus.Add(svc)
}

// AddRouterService adds a service to the router layer supervisor.
// Use this for router instances and the scaling coordinator. This is also
// the layer the scaling
// coordinator (C6) uses to spawn and retire router instances dynamically.
func (t *SupervisorTree) AddRouterService(svc suture.Service) suture.ServiceToken {
	return t.router.Add(svc)
}

// AddReliabilityService adds a service to the reliability layer supervisor.
// Use this for health checker loops and dead-letter analyzers/cleanup.
func (t *SupervisorTree) AddReliabilityService(svc suture.Service) suture.ServiceToken {
	return t.reliability.Add(svc)
}

// AddBackgroundService adds a service to the background layer supervisor.
// Use this for pub-sub retry processors and other ancillary loops.
func (t *SupervisorTree) AddBackgroundService(svc suture.Service) suture.ServiceToken {
	return t.background.Add(svc)
}

// RemoveRouterService removes a service from the router layer supervisor.
// The scaling coordinator calls this to retire an instance it spawned with
// AddRouterService.
func (t *SupervisorTree) RemoveRouterService(token suture.ServiceToken) error {
	return t.router.Remove(token)
}

// Serve starts the supervisor tree and blocks until the context is canceled.
// This is the main entry point for running the supervised application.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the supervisor tree in a background goroutine.
// Returns a channel that receives the error (or nil) when the supervisor stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport returns information about services that failed to stop
// within the configured shutdown timeout. Useful for debugging shutdown issues.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Remove removes a service from the tree by its token.
// The service will be stopped and removed.
func (t *SupervisorTree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

// RemoveAndWait removes a service and waits for it to fully stop.
// Use this when you need to ensure a service has completely terminated
// before proceeding. It acts on the root supervisor, so it accepts only
// tokens returned by the root, not by a layer's Add*Service method.
func (t *SupervisorTree) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	return t.root.RemoveAndWait(token, timeout)
}
