// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/taxpoynt-router/config.yaml",
	"/etc/taxpoynt-router/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
// Numeric defaults mirror the routing fabric's reference implementation.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development", // set ENVIRONMENT=production to enable the fail-fast routing contract
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Redis: RedisConfig{
			URL:      "redis://127.0.0.1:6379/0",
			Prefix:   "taxpoynt:message_router",
			PoolSize: 10,
		},
		EventBus: EventBusConfig{
			WorkerPoolSize:  16,
			MaxRetries:      3,
			MaintenanceTick: 60 * time.Second,
			RetentionWindow: 24 * time.Hour,
		},
		Queue: QueueConfig{
			MaxWorkersPerQueue: 4,
			RetryDelays:        []float64{1.0, 5.0, 15.0, 60.0},
			MaxSize:            0,
			BatchSize:          50,
			BatchTimeout:       2 * time.Second,
			PersistenceEnabled: false,
			PersistenceDir:     "/data/queues",
			MaintenanceTick:    30 * time.Second,
		},
		PubSub: PubSubConfig{
			HistorySize:      1000,
			AckTimeout:       30 * time.Second,
			BackoffFactor:    2.0,
			MaxRetries:       5,
			PublishRateLimit: 0,
		},
		Router: RouterConfig{
			StaleAfter:      5 * time.Minute,
			UnhealthyAfter:  5 * time.Minute,
			LoadResetTick:   1 * time.Minute,
			CacheTTL:        60 * time.Second,
			HeartbeatTTL:    5 * time.Minute,
			HeartbeatPeriod: 30 * time.Second,
		},
		Scaling: ScalingConfig{
			MinInstances:        1,
			MaxInstances:        10,
			TargetCPU:           0.7,
			TargetMPS:           100.0,
			TargetLatencyMs:     200.0,
			ScaleUpThreshold:    0.8,
			ScaleDownThreshold:  0.3,
			CooldownSeconds:     300,
			Policy:              "HYBRID",
			StatsCollectionTick: 10 * time.Second,
			HealthEvalTick:      60 * time.Second,
			ScalingDecisionTick: 30 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:      5,
			RecoveryTimeout:       30 * time.Second,
			SuccessThreshold:      2,
			Timeout:               10 * time.Second,
			RollingWindow:         60 * time.Second,
			MaxConcurrentHalfOpen: 1,
			StateTTL:              1 * time.Hour,
		},
		Health: HealthConfig{
			CheckInterval:      15 * time.Second,
			Timeout:            5 * time.Second,
			Retries:            3,
			RetryDelay:         2 * time.Second,
			DegradedThreshold:  30 * time.Second,
			UnhealthyThreshold: 3,
			AggregatorTick:     10 * time.Second,
			SnapshotTTL:        5 * time.Minute,
		},
		DeadLetter: DeadLetterConfig{
			PoisonThreshold:           5,
			RecurrenceThreshold:       3,
			OversizedBytes:            1 << 20, // 1MB
			MaxNestingDepth:           20,
			MaxRecoveryAttempts:       3,
			AutoRecoveryMinConfidence: 0.8,
			StorageDir:                "/data/dead-letters",
			RetentionDays:             30,
			CleanupTick:               1 * time.Hour,
		},
		ErrorCoord: ErrorCoordConfig{
			PatternDetectionWindow: 1 * time.Hour,
			MaxRetryAttempts:       3,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:  5 * time.Minute,
			RetentionDays:          30,
			PatternDetectorTick:    5 * time.Minute,
			CleanupTick:            24 * time.Hour,
		},
		Version: VersionConfig{
			LatestStable: "v1",
			Brand:        "taxpoynt",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// REDIS_URL -> redis.url
	// QUEUE_MAX_SIZE -> queue.max_size
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"queue.retry_delays",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file or defaults), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		if _, ok := val.([]float64); ok {
			continue
		}

		// If it's a string, split by comma into a []string of trimmed, non-empty parts
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - REDIS_URL -> redis.url
//   - QUEUE_MAX_SIZE -> queue.max_size
//   - SCALING_POLICY -> scaling.policy
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_port":   "server.port",
		"http_host":   "server.host",
		"http_timeout": "server.timeout",
		"environment": "server.environment",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Redis (shared store for C5/C6/C7/C8)
		"redis_url":       "redis.url",
		"redis_prefix":    "redis.prefix",
		"redis_pool_size": "redis.pool_size",

		// Event bus (C1)
		"eventbus_worker_pool_size": "eventbus.worker_pool_size",
		"eventbus_max_retries":      "eventbus.max_retries",
		"eventbus_maintenance_tick": "eventbus.maintenance_tick",
		"eventbus_retention_window": "eventbus.retention_window",

		// Queue manager (C2)
		"queue_max_workers_per_queue": "queue.max_workers_per_queue",
		"queue_retry_delays":          "queue.retry_delays",
		"queue_max_size":              "queue.max_size",
		"queue_batch_size":            "queue.batch_size",
		"queue_batch_timeout":         "queue.batch_timeout",
		"queue_persistence_enabled":   "queue.persistence_enabled",
		"queue_persistence_dir":       "queue.persistence_dir",
		"queue_maintenance_tick":      "queue.maintenance_tick",

		// Pub-sub coordinator (C3)
		"pubsub_history_size":       "pubsub.history_size",
		"pubsub_ack_timeout":        "pubsub.ack_timeout",
		"pubsub_backoff_factor":     "pubsub.backoff_factor",
		"pubsub_max_retries":        "pubsub.max_retries",
		"pubsub_publish_rate_limit": "pubsub.publish_rate_limit",

		// Message router (C4/C5)
		"router_stale_after":      "router.stale_after",
		"router_unhealthy_after":  "router.unhealthy_after",
		"router_load_reset_tick":  "router.load_reset_tick",
		"router_cache_ttl":        "router.cache_ttl",
		"router_heartbeat_ttl":    "router.heartbeat_ttl",
		"router_heartbeat_period": "router.heartbeat_period",

		// Scaling coordinator (C6)
		"scaling_min_instances":         "scaling.min_instances",
		"scaling_max_instances":         "scaling.max_instances",
		"scaling_target_cpu":            "scaling.target_cpu",
		"scaling_target_mps":            "scaling.target_mps",
		"scaling_target_latency_ms":     "scaling.target_latency_ms",
		"scaling_scale_up_threshold":    "scaling.scale_up_threshold",
		"scaling_scale_down_threshold":  "scaling.scale_down_threshold",
		"scaling_cooldown_seconds":      "scaling.cooldown_seconds",
		"scaling_policy":                "scaling.policy",
		"scaling_stats_collection_tick": "scaling.stats_collection_tick",
		"scaling_health_eval_tick":      "scaling.health_eval_tick",
		"scaling_decision_tick":         "scaling.scaling_decision_tick",

		// Circuit breaker (C7)
		"circuit_breaker_failure_threshold":        "circuit_breaker.failure_threshold",
		"circuit_breaker_recovery_timeout":          "circuit_breaker.recovery_timeout",
		"circuit_breaker_success_threshold":          "circuit_breaker.success_threshold",
		"circuit_breaker_timeout":                    "circuit_breaker.timeout",
		"circuit_breaker_rolling_window":              "circuit_breaker.rolling_window",
		"circuit_breaker_max_concurrent_half_open":    "circuit_breaker.max_concurrent_half_open",
		"circuit_breaker_state_ttl":                   "circuit_breaker.state_ttl",

		// Health checker (C8)
		"health_check_interval":       "health.check_interval",
		"health_timeout":              "health.timeout",
		"health_retries":              "health.retries",
		"health_retry_delay":          "health.retry_delay",
		"health_degraded_threshold":   "health.degraded_threshold",
		"health_unhealthy_threshold":  "health.unhealthy_threshold",
		"health_aggregator_tick":      "health.aggregator_tick",
		"health_snapshot_ttl":         "health.snapshot_ttl",

		// Dead letter handler (C9)
		"dead_letter_poison_threshold":                "dead_letter.poison_threshold",
		"dead_letter_recurrence_threshold":            "dead_letter.recurrence_threshold",
		"dead_letter_oversized_bytes":                 "dead_letter.oversized_bytes",
		"dead_letter_max_nesting_depth":                "dead_letter.max_nesting_depth",
		"dead_letter_max_recovery_attempts":            "dead_letter.max_recovery_attempts",
		"dead_letter_auto_recovery_min_confidence":     "dead_letter.auto_recovery_min_confidence",
		"dead_letter_storage_dir":                      "dead_letter.storage_dir",
		"dead_letter_retention_days":                   "dead_letter.retention_days",
		"dead_letter_cleanup_tick":                      "dead_letter.cleanup_tick",

		// Version coordinator (C11)
		"version_latest_stable": "version.latest_stable",
		"version_brand":         "version.brand",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
//
// Example usage:
//
//	var cfgMu sync.RWMutex
//	var cfg *Config
//
//	err := WatchConfigFile(configPath, func() {
//	    cfgMu.Lock()
//	    defer cfgMu.Unlock()
//	    newCfg, err := LoadWithKoanf()
//	    if err != nil {
//	        log.Printf("Config reload failed: %v", err)
//	        return
//	    }
//	    cfg = newCfg
//	    log.Println("Configuration reloaded successfully")
//	})
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
