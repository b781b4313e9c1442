// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package redisrouter

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/eventbus"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/router"
)

// Coordinator is the C5 replica: a router.Router wired to a shared-store
// Backend, plus instance heartbeat, stats publication, and the two
// cleanup loops described in the shared-state contract.
type Coordinator struct {
	*router.Router

	client     *redis.Client
	keys       keyset
	instanceID string
	startedAt  time.Time

	messagesRouted   atomic.Int64
	deliveryFailures atomic.Int64

	cancel context.CancelFunc
}

// New connects to Redis, loads existing state, and returns a Coordinator;
// the instance itself is registered by Start. Default rules are seeded only if the
// routing_rules hash is empty, so a fresh cluster bootstraps once.
func New(cfg config.RedisConfig, routerCfg config.RouterConfig, serverCfg config.ServerConfig, bus *eventbus.Bus) (*Coordinator, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	client := redis.NewClient(opts)

	be := newBackend(client, cfg.Prefix)
	be.loadAll()

	c := &Coordinator{
		Router:     router.New(routerCfg, serverCfg, be, bus),
		client:      client,
		keys:        newKeyset(cfg.Prefix),
		instanceID:  uuid.NewString(),
		startedAt:   time.Now().UTC(),
	}

	if len(be.Rules()) == 0 {
		if err := seedDefaultRules(c.Router); err != nil {
			logging.Warn().Err(err).Msg("redis router: default rule seeding failed")
		}
	}

	return c, nil
}

// Start registers the instance heartbeat and starts the background loops:
// heartbeat refresh, active-route/endpoint cleanup, stats publication, and
// the inherited health-monitor/load-reset loops.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.registerInstance(ctx); err != nil {
		cancel()
		return err
	}

	c.Router.RunBackgroundLoops(ctx)
	go c.heartbeatLoop(ctx)
	go c.cleanupLoop(ctx)
	go c.statsLoop(ctx)
	return nil
}

// Stop cancels all background loops started by Start.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// RouteMessage shadows the embedded Router's method to additionally track
// cluster-wide stats and write a short-lived active_routes record.
func (c *Coordinator) RouteMessage(targetRole domain.Role, operation string, payload map[string]any, priority domain.Priority, tenantID, correlationID, sourceService string) (map[string]any, error) {
	resp, err := c.Router.RouteMessage(targetRole, operation, payload, priority, tenantID, correlationID, sourceService)
	if err != nil {
		c.deliveryFailures.Add(1)
		return resp, err
	}
	c.messagesRouted.Add(1)
	c.recordActiveRoute(context.Background(), sourceService, targetRole, operation)
	return resp, nil
}

func (c *Coordinator) registerInstance(ctx context.Context) error {
	rec := instanceRecord{ID: c.instanceID, StartedAt: c.startedAt, LastHeartbeat: time.Now().UTC()}
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keys.instance(c.instanceID), blob, 5*time.Minute).Err()
}

func (c *Coordinator) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.registerInstance(ctx); err != nil {
				logging.Warn().Str("instance", c.instanceID).Err(err).Msg("redis router: heartbeat refresh failed")
			}
		}
	}
}

// cleanupLoop removes expired active_routes entries once a minute. It does
// not touch endpoint health; endpoints are marked stale and then unhealthy
// only by the Router's own health monitor started from RunBackgroundLoops.
func (c *Coordinator) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepActiveRoutes(ctx)
		}
	}
}

func (c *Coordinator) sweepActiveRoutes(ctx context.Context) {
	raw, err := c.client.HGetAll(ctx, c.keys.activeRoutes()).Result()
	if err != nil {
		logging.Warn().Err(err).Msg("redis router: active route sweep read failed")
		return
	}
	now := time.Now()
	var expired []string
	for id, blob := range raw {
		var rec activeRouteRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			expired = append(expired, id)
			continue
		}
		if now.After(rec.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return
	}
	if err := c.client.HDel(ctx, c.keys.activeRoutes(), expired...).Err(); err != nil {
		logging.Warn().Err(err).Msg("redis router: active route cleanup write failed")
	}
}

// recordActiveRoute writes a short-lived (60s) record of an in-flight
// routing decision, consulted by the cleanup sweep and for introspection.
func (c *Coordinator) recordActiveRoute(ctx context.Context, sourceService string, targetRole domain.Role, operation string) {
	id := uuid.NewString()
	rec := activeRouteRecord{
		SourceService: sourceService,
		TargetRole:    targetRole,
		Operation:     operation,
		RoutedAt:      time.Now().UTC(),
		ExpiresAt:     time.Now().UTC().Add(60 * time.Second),
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.HSet(ctx, c.keys.activeRoutes(), id, blob).Err(); err != nil {
		logging.Warn().Err(err).Msg("redis router: active route write failed")
	}
}

func (c *Coordinator) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.publishStats(ctx)
		}
	}
}

func (c *Coordinator) publishStats(ctx context.Context) {
	rec := statsRecord{
		InstanceID:       c.instanceID,
		MessagesRouted:   c.messagesRouted.Load(),
		DeliveryFailures: c.deliveryFailures.Load(),
		EndpointCount:    len(c.Router.AllEndpoints()),
		RuleCount:        len(c.Router.AllRules()),
		UpdatedAt:        time.Now().UTC(),
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.keys.stats(c.instanceID), blob, 5*time.Minute).Err(); err != nil {
		logging.Warn().Err(err).Msg("redis router: stats publish failed")
	}
}

// ClusterStats is the aggregated result of getRoutingStatistics().
type ClusterStats struct {
	InstanceCount           int     `json:"instance_count"`
	TotalMessagesRouted      int64   `json:"total_messages_routed"`
	TotalDeliveryFailures    int64   `json:"total_delivery_failures"`
	LocalInstance            statsRecord `json:"local_instance"`
}

// GetRoutingStatistics aggregates per-instance stats read from every
// …:stats:* key into cluster totals, alongside a snapshot of this replica.
func (c *Coordinator) GetRoutingStatistics(ctx context.Context) (ClusterStats, error) {
	var out ClusterStats
	out.LocalInstance = statsRecord{
		InstanceID:       c.instanceID,
		MessagesRouted:   c.messagesRouted.Load(),
		DeliveryFailures: c.deliveryFailures.Load(),
		EndpointCount:    len(c.Router.AllEndpoints()),
		RuleCount:        len(c.Router.AllRules()),
		UpdatedAt:        time.Now().UTC(),
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keys.statsGlob(), 100).Result()
		if err != nil {
			return out, err
		}
		for _, key := range keys {
			blob, err := c.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var rec statsRecord
			if err := json.Unmarshal([]byte(blob), &rec); err != nil {
				continue
			}
			out.InstanceCount++
			out.TotalMessagesRouted += rec.MessagesRouted
			out.TotalDeliveryFailures += rec.DeliveryFailures
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// instancePrefix returns the glob-stripped prefix, kept for readability at
// call sites that only need the namespace, e.g. debugging tools.
func (c *Coordinator) instancePrefix() string {
	return strings.TrimSuffix(c.keys.instancesGlob(), "*")
}
