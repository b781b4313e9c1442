// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package redisrouter

// keyset builds the Redis key names under a prefix, default
// "taxpoynt:message_router".
type keyset struct {
	prefix string
}

func newKeyset(prefix string) keyset {
	if prefix == "" {
		prefix = "taxpoynt:message_router"
	}
	return keyset{prefix: prefix}
}

func (k keyset) routingRules() string    { return k.prefix + ":routing_rules" }
func (k keyset) serviceEndpoints() string { return k.prefix + ":service_endpoints" }
func (k keyset) roleMappings() string    { return k.prefix + ":role_mappings" }
func (k keyset) activeRoutes() string    { return k.prefix + ":active_routes" }
func (k keyset) roundRobinState() string { return k.prefix + ":round_robin_state" }
func (k keyset) instance(id string) string { return k.prefix + ":instances:" + id }
func (k keyset) instancesGlob() string   { return k.prefix + ":instances:*" }
func (k keyset) stats(id string) string  { return k.prefix + ":stats:" + id }
func (k keyset) statsGlob() string       { return k.prefix + ":stats:*" }
