// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package router

import (
	"sort"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// matchContext carries everything a RoutingRule needs to evaluate against,
// gathered once per routeMessage call.
type matchContext struct {
	sourceService string
	sourceRole    domain.Role
	targetRole    domain.Role
	messageType   domain.MessageType
	payload       map[string]any
}

// matchingRules returns every rule in rules applicable to ctx, per the
// six-step match order, sorted by priority descending.
func matchingRules(rules []*domain.RoutingRule, ctx matchContext) []*domain.RoutingRule {
	var out []*domain.RoutingRule
	for _, r := range rules {
		if ruleMatches(r, ctx) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func ruleMatches(r *domain.RoutingRule, ctx matchContext) bool {
	// (a) source role filter
	if r.SourceRole != "" && r.SourceRole != ctx.sourceRole {
		return false
	}
	// (b) target role filter
	if r.TargetRole != "" && r.TargetRole != ctx.targetRole {
		return false
	}
	// (c) source pattern glob against source service
	if !domain.MatchGlob(r.SourcePattern, ctx.sourceService) {
		return false
	}
	// (d) message pattern glob against message type string
	if !domain.MatchGlob(r.MessagePattern, string(ctx.messageType)) {
		return false
	}
	// (e) conditions evaluator
	if !evalConditions(r.Conditions, ctx.payload) {
		return false
	}
	// (f) filter evaluator
	if !evalConditions(r.Filters, ctx.payload) {
		return false
	}
	return true
}

// evalConditions reports whether every named condition passes as a direct
// equality check against the payload. An empty/nil set always passes.
func evalConditions(conditions map[string]any, payload map[string]any) bool {
	for k, want := range conditions {
		got, ok := payload[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
