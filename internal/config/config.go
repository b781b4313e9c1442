// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package config

import "time"

// Config is the root configuration for the routing fabric. It is loaded by
// LoadWithKoanf from, in ascending priority: built-in defaults, an optional
// YAML config file, and environment variables.
type Config struct {
	Server         ServerConfig         `koanf:"server"`
	Logging        LoggingConfig        `koanf:"logging"`
	Redis          RedisConfig          `koanf:"redis"`
	EventBus       EventBusConfig       `koanf:"eventbus"`
	Queue          QueueConfig          `koanf:"queue"`
	PubSub         PubSubConfig         `koanf:"pubsub"`
	Router         RouterConfig         `koanf:"router"`
	Scaling        ScalingConfig        `koanf:"scaling"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
	Health         HealthConfig         `koanf:"health"`
	DeadLetter     DeadLetterConfig     `koanf:"dead_letter"`
	ErrorCoord     ErrorCoordConfig     `koanf:"error_coord"`
	Version        VersionConfig        `koanf:"version"`
}

// ServerConfig is the HTTP boundary's listen configuration.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development" or "production"; gates routeMessage's fail-fast contract (spec.md §4.4)
}

// IsProduction reports whether the production-mode routing contract
// applies (spec.md §4.4: no synthetic development-mode fallback responses).
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// LoggingConfig controls the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RedisConfig is the shared key-value store DSN used by C5/C6/C7/C8.
type RedisConfig struct {
	URL      string `koanf:"url"`
	Prefix   string `koanf:"prefix"` // default "taxpoynt:message_router"
	PoolSize int    `koanf:"pool_size"`
}

// EventBusConfig configures C1.
type EventBusConfig struct {
	WorkerPoolSize  int           `koanf:"worker_pool_size"` // bounded pool for sync handlers
	MaxRetries      int           `koanf:"max_retries"`
	MaintenanceTick time.Duration `koanf:"maintenance_tick"`  // default 60s
	RetentionWindow time.Duration `koanf:"retention_window"` // completed events older than this are pruned, default 24h
}

// QueueConfig configures C2.
type QueueConfig struct {
	MaxWorkersPerQueue int           `koanf:"max_workers_per_queue"`
	RetryDelays        []float64     `koanf:"retry_delays"` // seconds, default [1,5,15,60]
	MaxSize            int           `koanf:"max_size"`     // 0 = unbounded
	BatchSize          int           `koanf:"batch_size"`
	BatchTimeout       time.Duration `koanf:"batch_timeout"`
	PersistenceEnabled bool          `koanf:"persistence_enabled"`
	PersistenceDir     string        `koanf:"persistence_dir"`
	MaintenanceTick    time.Duration `koanf:"maintenance_tick"`
}

// PubSubConfig configures C3.
type PubSubConfig struct {
	HistorySize      int           `koanf:"history_size"` // per-topic ring buffer, default 1000
	AckTimeout       time.Duration `koanf:"ack_timeout"`
	BackoffFactor    float64       `koanf:"backoff_factor"` // retry delay = min(60, backoff_factor^retry_count)
	MaxRetries       int           `koanf:"max_retries"`
	PublishRateLimit float64       `koanf:"publish_rate_limit"` // publications/sec, 0 = unlimited
}

// RouterConfig configures C4/C5.
type RouterConfig struct {
	StaleAfter      time.Duration `koanf:"stale_after"`      // last_activity > this -> stale, default 5m
	UnhealthyAfter  time.Duration `koanf:"unhealthy_after"`  // stale for this long -> unhealthy, default 5m
	LoadResetTick   time.Duration `koanf:"load_reset_tick"`  // requests_per_minute zeroed this often, default 1m
	CacheTTL        time.Duration `koanf:"cache_ttl"`        // C5 local read-through cache, default 60s
	HeartbeatTTL    time.Duration `koanf:"heartbeat_ttl"`    // C5 instance heartbeat TTL, default 5m
	HeartbeatPeriod time.Duration `koanf:"heartbeat_period"` // default 30s
}

// ScalingConfig configures C6.
type ScalingConfig struct {
	MinInstances        int           `koanf:"min_instances"`
	MaxInstances         int           `koanf:"max_instances"`
	TargetCPU            float64       `koanf:"target_cpu"`
	TargetMPS            float64       `koanf:"target_mps"`
	TargetLatencyMs      float64       `koanf:"target_latency_ms"`
	ScaleUpThreshold     float64       `koanf:"scale_up_threshold"`
	ScaleDownThreshold   float64       `koanf:"scale_down_threshold"`
	CooldownSeconds      int           `koanf:"cooldown_seconds"`
	Policy               string        `koanf:"policy"` // MANUAL|CPU_BASED|QUEUE_BASED|LATENCY_BASED|HYBRID
	StatsCollectionTick  time.Duration `koanf:"stats_collection_tick"` // default 10s
	HealthEvalTick       time.Duration `koanf:"health_eval_tick"`      // default 60s
	ScalingDecisionTick  time.Duration `koanf:"scaling_decision_tick"` // default 30s
}

// CircuitBreakerConfig configures C7's defaults; individual breakers may
// override per-name.
type CircuitBreakerConfig struct {
	FailureThreshold      int           `koanf:"failure_threshold"`
	RecoveryTimeout       time.Duration `koanf:"recovery_timeout"`
	SuccessThreshold      int           `koanf:"success_threshold"`
	Timeout               time.Duration `koanf:"timeout"`
	RollingWindow         time.Duration `koanf:"rolling_window"`
	MaxConcurrentHalfOpen int           `koanf:"max_concurrent_half_open"`
	StateTTL              time.Duration `koanf:"state_ttl"` // TTL of the shared-store state record, set on each write
}

// HealthConfig configures C8's defaults; individual checks may override.
type HealthConfig struct {
	CheckInterval      time.Duration `koanf:"check_interval"`
	Timeout            time.Duration `koanf:"timeout"`
	Retries            int           `koanf:"retries"`
	RetryDelay         time.Duration `koanf:"retry_delay"`
	DegradedThreshold  time.Duration `koanf:"degraded_threshold"`
	UnhealthyThreshold int           `koanf:"unhealthy_threshold"`
	AggregatorTick     time.Duration `koanf:"aggregator_tick"` // default 10s
	SnapshotTTL        time.Duration `koanf:"snapshot_ttl"`    // default 5m
}

// DeadLetterConfig configures C9.
type DeadLetterConfig struct {
	PoisonThreshold           int           `koanf:"poison_threshold"`     // retry_count >= this -> poison, default 5
	RecurrenceThreshold       int           `koanf:"recurrence_threshold"` // default 3
	OversizedBytes            int           `koanf:"oversized_bytes"`      // default 1MB
	MaxNestingDepth           int           `koanf:"max_nesting_depth"`    // default 20
	MaxRecoveryAttempts       int           `koanf:"max_recovery_attempts"`
	AutoRecoveryMinConfidence float64       `koanf:"auto_recovery_min_confidence"` // default 0.8
	StorageDir                string        `koanf:"storage_dir"`
	RetentionDays             int           `koanf:"retention_days"` // default 30
	CleanupTick               time.Duration `koanf:"cleanup_tick"`
}

// ErrorCoordConfig configures C10.
type ErrorCoordConfig struct {
	PatternDetectionWindow time.Duration `koanf:"pattern_detection_window"`  // default 1h
	MaxRetryAttempts        int          `koanf:"max_retry_attempts"`        // default 3
	CircuitBreakerThreshold int          `koanf:"circuit_breaker_threshold"` // default 5
	CircuitBreakerTimeout   time.Duration `koanf:"circuit_breaker_timeout"`  // default 5m
	RetentionDays           int          `koanf:"retention_days"`           // default 30
	PatternDetectorTick     time.Duration `koanf:"pattern_detector_tick"`   // default 5m
	CleanupTick             time.Duration `koanf:"cleanup_tick"`            // default 24h
}

// VersionConfig configures C11.
type VersionConfig struct {
	LatestStable string `koanf:"latest_stable"`
	Brand        string `koanf:"brand"` // used in Accept: application/vnd.<brand>.vN+json
}
