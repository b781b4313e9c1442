// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

/*
Package config provides centralized configuration management for the routing
fabric.

This package handles loading, validation, and parsing of settings for every
component: the event bus, queue manager, pub-sub coordinator, message
router(s), scaling coordinator, circuit breaker, health checker, dead-letter
handler, error-coordination facade, and version coordinator.

# Configuration Sources

Configuration is loaded in ascending priority order via Koanf:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML config file (config.yaml, or $CONFIG_PATH)
 3. Environment variables (highest priority)

# Configuration Structure

The package organizes configuration into one section per component:

  - ServerConfig: HTTP boundary listen settings and environment gate
  - LoggingConfig: zerolog level/format/caller settings
  - RedisConfig: shared-store DSN used by C5/C6/C7/C8
  - EventBusConfig, QueueConfig, PubSubConfig: messaging core (C1-C3)
  - RouterConfig: message router defaults shared by C4/C5
  - ScalingConfig: scaling coordinator policy and bounds (C6)
  - CircuitBreakerConfig, HealthConfig: reliability layer defaults (C7/C8)
  - DeadLetterConfig: poison detection and recovery thresholds (C9)
  - VersionConfig: API version coordinator defaults (C11)

# Usage Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}
	fmt.Printf("listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)

# Validation

Validate() is called automatically by LoadWithKoanf and checks required
fields, numeric ranges, and cross-field invariants (for example that
scaling.scale_up_threshold exceeds scaling.scale_down_threshold).

# Thread Safety

The Config struct is immutable after LoadWithKoanf returns, making it safe
for concurrent access from multiple goroutines without synchronization.

# See Also

  - SPEC_FULL.md: full environment variable reference per component
*/
package config
