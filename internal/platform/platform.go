// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package platform

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/apiversion"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/breaker"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/deadletter"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/errorcoord"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/eventbus"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/health"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/pubsub"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/queue"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/scaling"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/supervisor"
)

// Platform bundles every constructed component (C1-C11) plus the
// supervisor tree that runs their background loops. It is the single
// object cmd/taxpoyntrouter/main.go depends on.
type Platform struct {
	Config *config.Config
	Tree   *supervisor.SupervisorTree

	Bus        *eventbus.Bus
	Queues     *queue.Manager
	PubSub     *pubsub.Coordinator
	Scaling    *scaling.Coordinator
	Breakers   *breaker.Registry
	Health     *health.Registry
	DeadLetter *deadletter.Handler
	ErrorCoord *errorcoord.Handler
	Versions   *apiversion.Table

	redis *redis.Client
}

// Build constructs the full routing fabric from cfg: C1 (event bus) and
// C2 (queue manager) first since nothing downstream depends on anything
// upstream of them, then C3 (pub-sub) and C6 (scaling, which owns its
// own pool of C5 Redis-backed router replicas), then C7/C8 alongside C6,
// then C9/C10 observing C1, and finally C11's version table, which holds
// no reference to anything but the Coordinator's DistributeMessage entry
// point. This mirrors the dependency order the teacher's cmd/server/main.go
// documents in its own package comment, adapted from "database → sync →
// websocket → auth → NATS → backup → HTTP" to this system's "bus → queue
// → pubsub → scaling(router replicas) → breaker/health → deadletter/
// errorcoord → HTTP boundary".
func Build(cfg *config.Config) (*Platform, error) {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return nil, fmt.Errorf("platform: supervisor tree: %w", err)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("platform: parsing redis url: %w", err)
	}
	if cfg.Redis.PoolSize > 0 {
		opts.PoolSize = cfg.Redis.PoolSize
	}
	store := redis.NewClient(opts)

	bus := eventbus.New(cfg.EventBus)
	tree.AddBusService(newStarterService("event-bus", bus))

	queues := queue.NewManager(cfg.Queue)
	tree.AddBusService(newStarterService("queue-manager", queues))

	pubsubCoord, err := pubsub.New(cfg.PubSub)
	if err != nil {
		return nil, fmt.Errorf("platform: pubsub coordinator: %w", err)
	}
	tree.AddBackgroundService(newStarterService("pubsub-coordinator", pubsubCoord))

	scalingCoord := scaling.New(cfg.Scaling, cfg.Redis, cfg.Router, cfg.Server, bus, tree, store)
	tree.AddRouterService(newErrStarterService("scaling-coordinator", scalingCoord))

	breakers := breaker.NewRegistry(cfg.CircuitBreaker, store, cfg.Redis.Prefix)

	healthRegistry := health.NewRegistry(tree, store, cfg.Redis.Prefix, cfg.Health)
	registerHealthChecks(healthRegistry, store, scalingCoord)

	deadLetter := deadletter.New(cfg.DeadLetter, bus)
	tree.AddReliabilityService(deadLetter)

	errorCoord := errorcoord.New(cfg.ErrorCoord, bus)
	tree.AddReliabilityService(errorCoord)

	versions := apiversion.NewTable(cfg.Version)

	return &Platform{
		Config:     cfg,
		Tree:       tree,
		Bus:        bus,
		Queues:     queues,
		PubSub:     pubsubCoord,
		Scaling:    scalingCoord,
		Breakers:   breakers,
		Health:     healthRegistry,
		DeadLetter: deadLetter,
		ErrorCoord: errorCoord,
		Versions:   versions,
		redis:      store,
	}, nil
}

// registerHealthChecks wires the liveness probes spec.md §4.8's health
// checker is meant to aggregate: the shared store and the router pool
// the scaling coordinator maintains. Individual downstream services
// (C4/C5 instances) register their own checks via RegisterService in a
// future iteration; these two are the dependencies every other component
// shares.
func registerHealthChecks(registry *health.Registry, store *redis.Client, scalingCoord *scaling.Coordinator) {
	registry.Register("redis", func(ctx context.Context) error {
		return store.Ping(ctx).Err()
	})
	registry.Register("router-pool", func(ctx context.Context) error {
		if scalingCoord.InstanceCount() == 0 {
			return fmt.Errorf("no active router instances")
		}
		return nil
	})
}

// Start brings the platform's HTTP-independent services up: the
// supervisor tree (bus/router/reliability/background layers) and the
// health aggregator loop. It returns a channel that receives the
// supervisor's terminal error (or nil) when ctx is canceled.
func (p *Platform) Start(ctx context.Context) <-chan error {
	p.Health.Start(ctx)
	return p.Tree.ServeBackground(ctx)
}

// HTTPHandler assembles the C11 boundary: version detection, role
// validation, rate limiting, and the `/route`, `/versions`, `/healthz`,
// and `/metrics` endpoints, in front of the scaling coordinator's
// DistributeMessage entry point.
func (p *Platform) HTTPHandler() http.Handler {
	healthz := func(w http.ResponseWriter, r *http.Request) {
		snap := p.Health.GetHealthStatus()
		w.Header().Set("Content-Type", "application/json")
		if snap.Overall != domain.ServiceHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = fmt.Fprintf(w, `{"status":%q}`, snap.Overall)
	}
	return apiversion.NewServer(p.Versions, p.Scaling, healthz, nil)
}

// Shutdown reports any supervisor-tree services that failed to stop
// within the tree's configured ShutdownTimeout, then closes the shared
// store connection, matching the teacher's defer-based close-on-shutdown
// pattern in cmd/server/main.go. Call this after the channel Start
// returned has been drained.
func (p *Platform) Shutdown() {
	unstopped, _ := p.Tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}
	if err := p.redis.Close(); err != nil {
		logging.Error().Err(err).Msg("error closing redis connection")
	}
}
