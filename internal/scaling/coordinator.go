// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package scaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/eventbus"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/redisrouter"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/supervisor"
)

const scalingEventLogCap = 200

// instance bundles a supervised C5 replica with the coordinator's view of
// its health and stats.
type instance struct {
	id          string
	coordinator *redisrouter.Coordinator
	token       suture.ServiceToken
	startedAt   time.Time

	stats             InstanceStats
	unhealthySince    time.Time // zero value means currently healthy
}

// Coordinator is the Horizontal Scaling Coordinator (C6).
type Coordinator struct {
	cfg       config.ScalingConfig
	redisCfg  config.RedisConfig
	routerCfg config.RouterConfig
	serverCfg config.ServerConfig
	bus       *eventbus.Bus
	tree      *supervisor.SupervisorTree
	store     *redis.Client

	mu            sync.Mutex
	instances     map[string]*instance
	lastScaledAt  time.Time
	eventLog      []ScalingEvent
}

// New constructs a scaling Coordinator. store is the shared key-value
// client used to persist per-instance stats and the scaling event log;
// it may be a different *redis.Client than any individual C5 replica uses
// internally.
func New(cfg config.ScalingConfig, redisCfg config.RedisConfig, routerCfg config.RouterConfig, serverCfg config.ServerConfig, bus *eventbus.Bus, tree *supervisor.SupervisorTree, store *redis.Client) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		redisCfg:  redisCfg,
		routerCfg: routerCfg,
		serverCfg: serverCfg,
		bus:       bus,
		tree:      tree,
		store:     store,
		instances: make(map[string]*instance),
	}
}

// Start brings the pool up to at least MinInstances and launches the
// stats-collection, health-evaluation, and scaling-decision loops.
func (c *Coordinator) Start(ctx context.Context) error {
	min := c.cfg.MinInstances
	if min <= 0 {
		min = 1
	}
	for i := 0; i < min; i++ {
		if _, err := c.spawnInstance(ctx); err != nil {
			return fmt.Errorf("scaling: initial spawn: %w", err)
		}
	}

	go c.statsLoop(ctx)
	go c.healthEvalLoop(ctx)
	go c.scalingDecisionLoop(ctx)
	return nil
}

func (c *Coordinator) spawnInstance(ctx context.Context) (*instance, error) {
	rc, err := redisrouter.New(c.redisCfg, c.routerCfg, c.serverCfg, c.bus)
	if err != nil {
		return nil, err
	}
	inst := &instance{
		id:          uuid.NewString(),
		coordinator: rc,
		startedAt:   time.Now().UTC(),
	}
	inst.token = c.tree.AddRouterService(&routerInstanceService{coordinator: rc})

	c.mu.Lock()
	c.instances[inst.id] = inst
	c.mu.Unlock()
	return inst, nil
}

// destroyInstance retires an instance's supervised service and drops it
// from the pool. It does not enforce min/max bounds; callers do.
func (c *Coordinator) destroyInstance(id string) {
	c.mu.Lock()
	inst, ok := c.instances[id]
	if ok {
		delete(c.instances, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := c.tree.RemoveRouterService(inst.token); err != nil {
		logging.Warn().Str("instance", id).Err(err).Msg("scaling: instance removal did not complete cleanly")
	}
}

func (c *Coordinator) instanceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}

func (c *Coordinator) statsLoop(ctx context.Context) {
	tick := c.cfg.StatsCollectionTick
	if tick <= 0 {
		tick = 10 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collectStats(ctx)
		}
	}
}

func (c *Coordinator) collectStats(ctx context.Context) {
	c.mu.Lock()
	snapshot := make([]*instance, 0, len(c.instances))
	for _, inst := range c.instances {
		snapshot = append(snapshot, inst)
	}
	c.mu.Unlock()

	for _, inst := range snapshot {
		cs, err := inst.coordinator.GetRoutingStatistics(ctx)
		if err != nil {
			logging.Warn().Str("instance", inst.id).Err(err).Msg("scaling: stats collection failed")
			continue
		}
		uptime := time.Since(inst.startedAt).Seconds()
		errRate := 0.0
		if total := cs.LocalInstance.MessagesRouted + cs.LocalInstance.DeliveryFailures; total > 0 {
			errRate = float64(cs.LocalInstance.DeliveryFailures) / float64(total)
		}
		mps := 0.0
		if uptime > 0 {
			mps = float64(cs.LocalInstance.MessagesRouted) / uptime
		}

		stats := InstanceStats{
			InstanceID:     inst.id,
			MessagesPerSec: mps,
			ErrorRate:      errRate,
			UptimeSeconds:  uptime,
			HealthScore:    healthScoreFrom(errRate),
			LastHeartbeat:  time.Now().UTC(),
			CollectedAt:    time.Now().UTC(),
		}

		c.mu.Lock()
		if live, ok := c.instances[inst.id]; ok {
			live.stats = stats
			if stats.HealthScore >= 0.3 {
				live.unhealthySince = time.Time{}
			} else if live.unhealthySince.IsZero() {
				live.unhealthySince = time.Now().UTC()
			}
		}
		c.mu.Unlock()

		c.persistStats(ctx, stats)
	}
}

// healthScoreFrom derives a [0,1] health score from the error rate; the
// coordinator has no latency signal from GetRoutingStatistics alone, so
// the score degrades purely with failures, which is what the health-eval
// loop actually decides on (retirement past a sustained low score).
func healthScoreFrom(errRate float64) float64 {
	score := 1 - errRate
	if score < 0 {
		return 0
	}
	return score
}

func (c *Coordinator) persistStats(ctx context.Context, stats InstanceStats) {
	if c.store == nil {
		return
	}
	blob, err := json.Marshal(stats)
	if err != nil {
		return
	}
	key := "taxpoynt:scaling:instance_stats:" + stats.InstanceID
	if err := c.store.Set(ctx, key, blob, 5*time.Minute).Err(); err != nil {
		logging.Warn().Str("instance", stats.InstanceID).Err(err).Msg("scaling: stats persistence failed")
	}
}

func (c *Coordinator) healthEvalLoop(ctx context.Context) {
	tick := c.cfg.HealthEvalTick
	if tick <= 0 {
		tick = 60 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evaluateHealth(ctx)
		}
	}
}

// evaluateHealth destroys any instance whose health score has been below
// 0.3 for more than 5 minutes, replacing it if the pool would otherwise
// fall below MinInstances.
func (c *Coordinator) evaluateHealth(ctx context.Context) {
	c.mu.Lock()
	var toDestroy []string
	for id, inst := range c.instances {
		if !inst.unhealthySince.IsZero() && time.Since(inst.unhealthySince) > 5*time.Minute {
			toDestroy = append(toDestroy, id)
		}
	}
	c.mu.Unlock()

	for _, id := range toDestroy {
		before := c.instanceCount()
		c.destroyInstance(id)
		logging.Warn().Str("instance", id).Msg("scaling: destroyed instance with sustained low health score")
		c.logEvent(ctx, "unhealthy instance destroyed", before, c.instanceCount())

		if c.instanceCount() < c.minInstances() {
			if _, err := c.spawnInstance(ctx); err != nil {
				logging.Warn().Err(err).Msg("scaling: replacement spawn after health eviction failed")
				continue
			}
			c.logEvent(ctx, "replacement instance spawned after eviction", c.instanceCount()-1, c.instanceCount())
		}
	}
}

func (c *Coordinator) minInstances() int {
	if c.cfg.MinInstances <= 0 {
		return 1
	}
	return c.cfg.MinInstances
}

func (c *Coordinator) maxInstances() int {
	if c.cfg.MaxInstances <= 0 {
		return c.minInstances()
	}
	return c.cfg.MaxInstances
}

func (c *Coordinator) scalingDecisionLoop(ctx context.Context) {
	tick := c.cfg.ScalingDecisionTick
	if tick <= 0 {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runScalingDecision(ctx)
		}
	}
}

// runScalingDecision implements the factor = max(mps/target_mps,
// latency/target_latency, error_rate/0.05) rule. Policy MANUAL skips
// automatic decisions entirely; every other policy uses the same combined
// factor, since the spec names the policies but gives one formula.
func (c *Coordinator) runScalingDecision(ctx context.Context) {
	if Policy(c.cfg.Policy) == PolicyManual {
		return
	}
	cooldown := time.Duration(c.cfg.CooldownSeconds) * time.Second
	c.mu.Lock()
	inCooldown := cooldown > 0 && time.Since(c.lastScaledAt) < cooldown
	c.mu.Unlock()
	if inCooldown {
		return
	}

	factor := c.clusterScalingFactor()
	count := c.instanceCount()

	switch {
	case factor > c.cfg.ScaleUpThreshold && count < c.maxInstances():
		before := count
		if _, err := c.spawnInstance(ctx); err != nil {
			logging.Warn().Err(err).Msg("scaling: scale-up spawn failed")
			return
		}
		c.mu.Lock()
		c.lastScaledAt = time.Now().UTC()
		c.mu.Unlock()
		c.logEvent(ctx, fmt.Sprintf("scale up: factor=%.3f > threshold=%.3f", factor, c.cfg.ScaleUpThreshold), before, c.instanceCount())
	case factor < c.cfg.ScaleDownThreshold && count > c.minInstances():
		before := count
		victim := c.lowestHealthInstance()
		if victim != "" {
			c.destroyInstance(victim)
		}
		c.mu.Lock()
		c.lastScaledAt = time.Now().UTC()
		c.mu.Unlock()
		c.logEvent(ctx, fmt.Sprintf("scale down: factor=%.3f < threshold=%.3f", factor, c.cfg.ScaleDownThreshold), before, c.instanceCount())
	}
}

func (c *Coordinator) clusterScalingFactor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.instances) == 0 {
		return 0
	}
	var mps, latency, errRate float64
	for _, inst := range c.instances {
		mps += inst.stats.MessagesPerSec
		latency += inst.stats.LatencyMs
		errRate += inst.stats.ErrorRate
	}
	n := float64(len(c.instances))
	avgLatency := latency / n
	avgErr := errRate / n

	targetMPS := c.cfg.TargetMPS
	if targetMPS <= 0 {
		targetMPS = 1
	}
	targetLatency := c.cfg.TargetLatencyMs
	if targetLatency <= 0 {
		targetLatency = 1
	}

	mpsFactor := mps / targetMPS
	latencyFactor := avgLatency / targetLatency
	errFactor := avgErr / 0.05
	return maxOf3(mpsFactor, latencyFactor, errFactor)
}

func maxOf3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func (c *Coordinator) lowestHealthInstance() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var worstID string
	worstScore := 2.0 // above the [0,1] range so any instance replaces it
	for id, inst := range c.instances {
		if inst.stats.HealthScore < worstScore {
			worstScore = inst.stats.HealthScore
			worstID = id
		}
	}
	return worstID
}

// ManualScale clamps target to [min, max] and spawns or retires instances
// to match, preferring to destroy the lowest-health instances first.
func (c *Coordinator) ManualScale(ctx context.Context, target int) error {
	if target < c.minInstances() {
		target = c.minInstances()
	}
	if target > c.maxInstances() {
		target = c.maxInstances()
	}

	before := c.instanceCount()
	for c.instanceCount() < target {
		if _, err := c.spawnInstance(ctx); err != nil {
			return err
		}
	}
	for c.instanceCount() > target {
		victim := c.lowestHealthInstance()
		if victim == "" {
			break
		}
		c.destroyInstance(victim)
	}
	c.logEvent(ctx, fmt.Sprintf("manual scale to %d", target), before, c.instanceCount())
	return nil
}

// DistributeMessage picks the instance with the lowest load score and
// delegates RouteMessage to it.
func (c *Coordinator) DistributeMessage(targetRole domain.Role, operation string, payload map[string]any, priority domain.Priority, tenantID, correlationID, sourceService string) (map[string]any, error) {
	c.mu.Lock()
	var best *instance
	bestScore := 0.0
	first := true
	for _, inst := range c.instances {
		s := inst.stats.loadScore()
		if first || s < bestScore {
			best, bestScore, first = inst, s, false
		}
	}
	c.mu.Unlock()

	if best == nil {
		return nil, fmt.Errorf("scaling: no instances available to route to")
	}
	return best.coordinator.RouteMessage(targetRole, operation, payload, priority, tenantID, correlationID, sourceService)
}

func (c *Coordinator) logEvent(ctx context.Context, reason string, before, after int) {
	evt := ScalingEvent{Timestamp: time.Now().UTC(), Reason: reason, BeforeCount: before, AfterCount: after}

	c.mu.Lock()
	c.eventLog = append(c.eventLog, evt)
	if len(c.eventLog) > scalingEventLogCap {
		c.eventLog = c.eventLog[len(c.eventLog)-scalingEventLogCap:]
	}
	c.mu.Unlock()

	logging.Info().Str("reason", reason).Int("before", before).Int("after", after).Msg("scaling event")

	if c.store == nil {
		return
	}
	blob, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := c.store.RPush(ctx, "taxpoynt:scaling:events", blob).Err(); err != nil {
		return
	}
	c.store.LTrim(ctx, "taxpoynt:scaling:events", -scalingEventLogCap, -1)
}

// Events returns a copy of the in-memory bounded scaling-event log.
func (c *Coordinator) Events() []ScalingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScalingEvent, len(c.eventLog))
	copy(out, c.eventLog)
	return out
}

// InstanceCount returns the number of live instances in the pool.
func (c *Coordinator) InstanceCount() int {
	return c.instanceCount()
}
