// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package router

import (
	"sort"
	"sync"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// deliveryResult is one endpoint's outcome within a strategy execution.
type deliveryResult struct {
	endpoint *domain.ServiceEndpoint
	response map[string]any
	err      error
}

// broadcast delivers to every endpoint concurrently and merges dict
// responses: a single response passes through, multiple responses merge
// into {status, merged_responses, response_count, responses, data}.
func (rt *Router) broadcast(endpoints []*domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	var wg sync.WaitGroup
	results := make([]deliveryResult, len(endpoints))
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep *domain.ServiceEndpoint) {
			defer wg.Done()
			resp, err := rt.deliverTo(ep, ctx)
			results[i] = deliveryResult{endpoint: ep, response: resp, err: err}
		}(i, ep)
	}
	wg.Wait()

	var ok []deliveryResult
	for _, r := range results {
		if r.err == nil {
			ok = append(ok, r)
		}
	}
	if len(ok) == 0 {
		return nil, errNoSuccessfulDelivery
	}
	if len(ok) == 1 {
		return ok[0].response, nil
	}

	var data []any
	responses := make([]map[string]any, 0, len(ok))
	for _, r := range ok {
		responses = append(responses, r.response)
		if d, has := r.response["data"]; has {
			if arr, isArr := d.([]any); isArr {
				data = append(data, arr...)
			} else {
				data = append(data, d)
			}
		}
	}
	merged := map[string]any{
		"status":           "success",
		"merged_responses": true,
		"response_count":   len(ok),
		"responses":        responses,
	}
	if len(data) > 0 {
		merged["data"] = data
	}
	return merged, nil
}

// roundRobin delivers to the rule's next endpoint in rotation.
func (rt *Router) roundRobin(ruleID string, endpoints []*domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	if len(endpoints) == 0 {
		return nil, errNoSuccessfulDelivery
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].ID < endpoints[j].ID })

	rt.mu.Lock()
	idx := rt.rrCounters[ruleID] % len(endpoints)
	rt.rrCounters[ruleID]++
	rt.mu.Unlock()

	return rt.deliverTo(endpoints[idx], ctx)
}

// priorityStrategy tries endpoints sorted by priority desc until one
// succeeds.
func (rt *Router) priorityStrategy(endpoints []*domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	ordered := append([]*domain.ServiceEndpoint(nil), endpoints...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })
	return rt.tryInOrder(ordered, ctx)
}

// loadBalanced picks the endpoint with the minimum weighted load score.
func (rt *Router) loadBalanced(endpoints []*domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	if len(endpoints) == 0 {
		return nil, errNoSuccessfulDelivery
	}
	best := endpoints[0]
	bestScore := loadScore(best)
	for _, ep := range endpoints[1:] {
		if s := loadScore(ep); s < bestScore {
			best, bestScore = ep, s
		}
	}
	return rt.deliverTo(best, ctx)
}

// loadScore is 0.4*rpm + 0.3*avg_response_time + 20*error_rate + 0.1*active_conns,
// divided by load_factor (a load_factor of 0 is treated as 1 to avoid a
// divide-by-zero blowing up otherwise-healthy endpoints).
func loadScore(ep *domain.ServiceEndpoint) float64 {
	factor := ep.LoadFactor
	if factor <= 0 {
		factor = 1
	}
	raw := 0.4*ep.RequestsPerMinute + 0.3*ep.AvgResponseTimeMs + 20*ep.ErrorRate + 0.1*float64(ep.ActiveConnections)
	return raw / factor
}

// failover sorts endpoints by (priority desc, healthy first) and tries in
// order.
func (rt *Router) failover(endpoints []*domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	ordered := append([]*domain.ServiceEndpoint(nil), endpoints...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Health == domain.HealthHealthy && ordered[j].Health != domain.HealthHealthy
	})
	return rt.tryInOrder(ordered, ctx)
}

func (rt *Router) tryInOrder(endpoints []*domain.ServiceEndpoint, ctx domain.DeliveryContext) (map[string]any, error) {
	var lastErr error
	for _, ep := range endpoints {
		resp, err := rt.deliverTo(ep, ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errNoSuccessfulDelivery
	}
	return nil, lastErr
}
