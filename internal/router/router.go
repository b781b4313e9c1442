// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/eventbus"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// errNoSuccessfulDelivery is returned when every candidate endpoint for a
// strategy failed, or none were available.
var errNoSuccessfulDelivery = errors.New("router: no endpoint produced a successful delivery")

// ErrNoApplicableRules is the production-mode fail-fast error for a route
// with no matching rule and no fallback response.
var ErrNoApplicableRules = errors.New("router: no applicable routing rules")

// Router is the central role-based message dispatcher (C4). Endpoint and
// rule storage is delegated to a Backend, so the same Router drives both
// the in-memory default and a shared-store-backed replica.
type Router struct {
	cfg        config.RouterConfig
	serverCfg  config.ServerConfig
	backend    Backend
	bus        *eventbus.Bus
	instanceID string

	mu         sync.Mutex
	rrCounters map[string]int
}

// New constructs a Router over the given Backend. bus may be nil, in
// which case endpoints without an in-process callback simply fail to
// deliver (no event-bus fallback is attempted).
func New(cfg config.RouterConfig, serverCfg config.ServerConfig, backend Backend, bus *eventbus.Bus) *Router {
	return &Router{
		cfg:        cfg,
		serverCfg:  serverCfg,
		backend:    backend,
		bus:        bus,
		instanceID: uuid.NewString(),
		rrCounters: make(map[string]int),
	}
}

// RegisterService adds a new ServiceEndpoint and returns its id.
func (rt *Router) RegisterService(name string, role domain.Role, url string, callback domain.Callback, priority int, tags []string, metadata map[string]any) (string, error) {
	ep := &domain.ServiceEndpoint{
		ID:           uuid.NewString(),
		ServiceName:  name,
		Role:         role,
		URL:          url,
		Callback:     callback,
		Priority:     priority,
		Active:       true,
		LoadFactor:   1.0,
		LastActivity: time.Now().UTC(),
		Health:       domain.HealthHealthy,
		Tags:         tags,
		Metadata:     metadata,
	}
	if err := rt.backend.SaveEndpoint(ep); err != nil {
		return "", fmt.Errorf("router: register service: %w", err)
	}
	rt.reportEndpointGauges()
	return ep.ID, nil
}

// UnregisterService removes a registered endpoint.
func (rt *Router) UnregisterService(endpointID string) error {
	if err := rt.backend.DeleteEndpoint(endpointID); err != nil {
		return fmt.Errorf("router: unregister service: %w", err)
	}
	rt.reportEndpointGauges()
	return nil
}

// AddRoutingRule registers a new RoutingRule, assigning an id if empty.
func (rt *Router) AddRoutingRule(rule domain.RoutingRule) (string, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	r := rule
	if err := rt.backend.SaveRule(&r); err != nil {
		return "", fmt.Errorf("router: add routing rule: %w", err)
	}
	return r.ID, nil
}

// RemoveRoutingRule deletes a routing rule by id.
func (rt *Router) RemoveRoutingRule(id string) error {
	return rt.backend.DeleteRule(id)
}

// RouteMessage routes an operation targeted at targetRole, applying
// matching rules in priority order until one strategy produces a
// response.
func (rt *Router) RouteMessage(targetRole domain.Role, operation string, payload map[string]any, priority domain.Priority, tenantID, correlationID, sourceService string) (map[string]any, error) {
	msgType := inferMessageType(operation)
	ctx := matchContext{
		sourceService: sourceService,
		sourceRole:    rt.sourceRoleOf(sourceService),
		targetRole:    targetRole,
		messageType:   msgType,
		payload:       payload,
	}

	rules := matchingRules(rt.backend.Rules(), ctx)
	if len(rules) == 0 {
		return rt.noRuleResponse(operation)
	}

	deliveryCtx := domain.DeliveryContext{
		Operation:     operation,
		Payload:       payload,
		SourceService: sourceService,
		SourceRole:    ctx.sourceRole,
		TenantID:      tenantID,
		CorrelationID: correlationID,
	}

	for _, rule := range rules {
		metrics.RouterRuleMatches.WithLabelValues(rule.ID).Inc()
		endpoints := rt.endpointsForRole(targetRole, rule)
		if len(endpoints) == 0 {
			continue
		}
		resp, err := rt.execute(rule.Strategy, rule.ID, endpoints, deliveryCtx)
		if err == nil && len(resp) > 0 {
			metrics.RouterDeliveries.WithLabelValues(string(rule.Strategy), "success").Inc()
			return resp, nil
		}
		metrics.RouterDeliveries.WithLabelValues(string(rule.Strategy), "failure").Inc()
	}

	return rt.noRuleResponse(operation)
}

// RouteToRole is an alias for RouteMessage kept for call-site symmetry
// with the public surface named in the routing contract.
func (rt *Router) RouteToRole(targetRole domain.Role, operation string, payload map[string]any, priority domain.Priority, tenantID, correlationID, sourceService string) (map[string]any, error) {
	return rt.RouteMessage(targetRole, operation, payload, priority, tenantID, correlationID, sourceService)
}

// RouteToService delivers directly to a single named endpoint, bypassing
// rule matching.
func (rt *Router) RouteToService(endpointID, operation string, payload map[string]any, tenantID, correlationID, sourceService string) (map[string]any, error) {
	ep, ok := rt.backend.Endpoint(endpointID)
	if !ok {
		return nil, fmt.Errorf("router: unknown endpoint %q", endpointID)
	}
	return rt.deliverTo(ep, domain.DeliveryContext{
		Operation:     operation,
		Payload:       payload,
		SourceService: sourceService,
		TenantID:      tenantID,
		CorrelationID: correlationID,
	})
}

func (rt *Router) execute(strategy domain.Strategy, ruleID string, endpoints []*domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	switch strategy {
	case domain.StrategyBroadcast:
		return rt.broadcast(endpoints, ctx)
	case domain.StrategyRoundRobin:
		return rt.roundRobin(ruleID, endpoints, ctx)
	case domain.StrategyPriority:
		return rt.priorityStrategy(endpoints, ctx)
	case domain.StrategyLoadBalanced:
		return rt.loadBalanced(endpoints, ctx)
	case domain.StrategyFailover:
		return rt.failover(endpoints, ctx)
	default:
		return rt.broadcast(endpoints, ctx)
	}
}

// deliverTo invokes an endpoint's in-process callback directly, or emits
// message.<type> on the event bus when the endpoint has none.
func (rt *Router) deliverTo(ep *domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	ep.LastActivity = time.Now().UTC()
	ep.RequestsPerMinute++

	if !endpointAdvertises(ep, ctx.Operation) {
		logging.Warn().Str("endpoint", ep.ServiceName).Str("operation", ctx.Operation).
			Msg("operation not in endpoint's advertised operations, routing anyway")
	}

	if ep.Callback != nil {
		resp, err := ep.Callback(ctx)
		if err != nil {
			ep.ErrorRate = ep.ErrorRate*0.9 + 0.1
		} else {
			ep.ErrorRate *= 0.9
		}
		return resp, err
	}

	if rt.bus == nil {
		return nil, fmt.Errorf("router: endpoint %q has no callback and no event bus is configured", ep.ServiceName)
	}

	evtType := "message." + string(inferMessageType(ctx.Operation))
	_, err := rt.bus.Emit(evtType, map[string]any{
		"operation": ctx.Operation,
		"payload":   ctx.Payload,
	}, ctx.SourceService, scopeForRole(ep.Role), domain.PriorityNormal,
		eventbus.WithTenant(ctx.TenantID), eventbus.WithCorrelation(ctx.CorrelationID))
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "accepted", "delivery": "event_bus"}, nil
}

// endpointAdvertises reports whether the endpoint's advertised operations
// (if any) include operation. No advertised set means anything goes.
func endpointAdvertises(ep *domain.ServiceEndpoint, operation string) bool {
	ops := ep.Operations()
	if len(ops) == 0 {
		return true
	}
	for _, op := range ops {
		if op == operation {
			return true
		}
	}
	return false
}

// endpointsForRole returns active endpoints matching a rule's target
// pattern and role, further filtered to the requested targetRole.
func (rt *Router) endpointsForRole(targetRole domain.Role, rule *domain.RoutingRule) []*domain.ServiceEndpoint {
	var out []*domain.ServiceEndpoint
	for _, ep := range rt.backend.Endpoints() {
		if !ep.Active || ep.Role != targetRole {
			continue
		}
		if !domain.MatchGlob(rule.TargetPattern, ep.ServiceName) {
			continue
		}
		out = append(out, ep)
	}
	return out
}

// sourceRoleOf looks up a registered endpoint's role by service name, for
// rule matching against the message's originator.
func (rt *Router) sourceRoleOf(sourceService string) domain.Role {
	for _, ep := range rt.backend.Endpoints() {
		if ep.ServiceName == sourceService {
			return ep.Role
		}
	}
	return ""
}

// noRuleResponse implements the production-mode fail-fast contract: a
// route with no applicable rules fails in production, or returns a
// synthetic success in development (a test-only fallback, never a
// contract consumers should rely on).
func (rt *Router) noRuleResponse(operation string) (map[string]any, error) {
	if rt.serverCfg.IsProduction() {
		return nil, ErrNoApplicableRules
	}
	return map[string]any{
		"status":        "success",
		"development_fallback": true,
		"operation":     operation,
	}, nil
}

// AllEndpoints returns every registered endpoint, for introspection and
// for replicas (e.g. internal/redisrouter) that aggregate stats across the
// underlying Backend.
func (rt *Router) AllEndpoints() []*domain.ServiceEndpoint {
	return rt.backend.Endpoints()
}

// AllRules returns every registered routing rule.
func (rt *Router) AllRules() []*domain.RoutingRule {
	return rt.backend.Rules()
}

// BackendUnsafe returns the underlying Backend for white-box testing by
// packages that wrap Router (e.g. internal/redisrouter). Production code
// should go through Router's own operations instead.
func (rt *Router) BackendUnsafe() Backend {
	return rt.backend
}

func (rt *Router) reportEndpointGauges() {
	counts := map[[2]string]int{}
	for _, ep := range rt.backend.Endpoints() {
		counts[[2]string{string(ep.Role), string(ep.Health)}]++
	}
	for k, v := range counts {
		metrics.RouterEndpoints.WithLabelValues(k[0], k[1]).Set(float64(v))
	}
}

// RunBackgroundLoops starts the health monitor and load-reset loops in
// their own goroutines and returns; the loops exit when ctx is cancelled.
func (rt *Router) RunBackgroundLoops(ctx context.Context) {
	go rt.healthMonitorLoop(ctx)
	go rt.loadResetLoop(ctx)
}

func (rt *Router) healthMonitorLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.checkEndpointHealthOnce()
		}
	}
}

// checkEndpointHealthOnce runs a single health-monitor pass: endpoints
// idle past StaleAfter go stale, and past StaleAfter+UnhealthyAfter go
// unhealthy and inactive. Exposed separately from the loop for testing.
func (rt *Router) checkEndpointHealthOnce() {
	staleAfter := rt.cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	unhealthyAfter := rt.cfg.UnhealthyAfter
	if unhealthyAfter <= 0 {
		unhealthyAfter = 5 * time.Minute
	}
	now := time.Now()
	for _, ep := range rt.backend.Endpoints() {
		idle := now.Sub(ep.LastActivity)
		switch {
		case idle > staleAfter+unhealthyAfter:
			ep.Health = domain.HealthUnhealthy
			ep.Active = false
		case idle > staleAfter:
			ep.Health = domain.HealthStale
		default:
			ep.Health = domain.HealthHealthy
		}
		_ = rt.backend.SaveEndpoint(ep)
	}
	rt.reportEndpointGauges()
}

func (rt *Router) loadResetLoop(ctx context.Context) {
	tick := rt.cfg.LoadResetTick
	if tick <= 0 {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ep := range rt.backend.Endpoints() {
				ep.RequestsPerMinute = 0
				_ = rt.backend.SaveEndpoint(ep)
			}
		}
	}
}
