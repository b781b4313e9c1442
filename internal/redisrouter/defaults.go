// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package redisrouter

import (
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/router"
)

// seedDefaultRules installs the minimum default rule set a fresh cluster
// needs at startup, run once when the routing_rules hash is empty.
func seedDefaultRules(rt *router.Router) error {
	defaults := []domain.RoutingRule{
		{
			SourcePattern:  "api-gateway*",
			TargetPattern:  "*banking*",
			MessagePattern: "*",
			TargetRole:     domain.RoleSI,
			Strategy:       domain.StrategyPriority,
			Priority:       100,
		},
		{
			SourcePattern:  "api-gateway*",
			TargetPattern:  "*",
			MessagePattern: "*",
			TargetRole:     domain.RoleSI,
			Strategy:       domain.StrategyLoadBalanced,
			Priority:       10,
		},
		{
			SourcePattern:  "*",
			TargetPattern:  "*",
			MessagePattern: "*",
			SourceRole:     domain.RoleSI,
			TargetRole:     domain.RoleAPP,
			Strategy:       domain.StrategyLoadBalanced,
			Priority:       50,
		},
		{
			SourcePattern:  "*",
			TargetPattern:  "*",
			MessagePattern: "*",
			SourceRole:     domain.RoleAPP,
			TargetRole:     domain.RoleSI,
			Strategy:       domain.StrategyBroadcast,
			Priority:       50,
		},
		{
			SourcePattern:  "*",
			TargetPattern:  "*coordinator*",
			MessagePattern: "*",
			TargetRole:     domain.RoleHybridCoordinator,
			Strategy:       domain.StrategyRoundRobin,
			Priority:       60,
		},
		{
			SourcePattern:  "core-platform*",
			TargetPattern:  "*",
			MessagePattern: "alert_*",
			Strategy:       domain.StrategyBroadcast,
			Priority:       90,
		},
	}

	for _, rule := range defaults {
		if _, err := rt.AddRoutingRule(rule); err != nil {
			return err
		}
	}
	return nil
}
