// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validatePubSub(); err != nil {
		return err
	}
	if err := c.validateScaling(); err != nil {
		return err
	}
	if err := c.validateCircuitBreaker(); err != nil {
		return err
	}
	if err := c.validateHealth(); err != nil {
		return err
	}
	if err := c.validateDeadLetter(); err != nil {
		return err
	}
	if err := c.validateErrorCoord(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validateServer validates the HTTP boundary's listen configuration.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	validEnvs := map[string]bool{"development": true, "dev": true, "production": true, "prod": true, "": true}
	if !validEnvs[strings.ToLower(c.Server.Environment)] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, production")
	}
	return nil
}

// validateRedis validates the shared-store DSN used by C5/C6/C7/C8.
func (c *Config) validateRedis() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if err := validateRedisURL(c.Redis.URL); err != nil {
		return fmt.Errorf("REDIS_URL is invalid: %w", err)
	}
	if c.Redis.PoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be at least 1")
	}
	return nil
}

// validateQueue validates the queue manager's retry/backoff schedule and sizing.
func (c *Config) validateQueue() error {
	if len(c.Queue.RetryDelays) == 0 {
		return fmt.Errorf("QUEUE_RETRY_DELAYS must contain at least one delay")
	}
	for _, d := range c.Queue.RetryDelays {
		if d < 0 {
			return fmt.Errorf("QUEUE_RETRY_DELAYS entries must be non-negative")
		}
	}
	if c.Queue.MaxWorkersPerQueue < 1 {
		return fmt.Errorf("QUEUE_MAX_WORKERS_PER_QUEUE must be at least 1")
	}
	if c.Queue.MaxSize < 0 {
		return fmt.Errorf("QUEUE_MAX_SIZE must be non-negative (0 means unbounded)")
	}
	return nil
}

// validatePubSub validates the pub-sub coordinator's history and retry settings.
func (c *Config) validatePubSub() error {
	if c.PubSub.HistorySize < 1 {
		return fmt.Errorf("PUBSUB_HISTORY_SIZE must be at least 1")
	}
	if c.PubSub.BackoffFactor <= 1.0 {
		return fmt.Errorf("PUBSUB_BACKOFF_FACTOR must be greater than 1.0")
	}
	if c.PubSub.PublishRateLimit < 0 {
		return fmt.Errorf("PUBSUB_PUBLISH_RATE_LIMIT must be non-negative (0 means unlimited)")
	}
	return nil
}

// validateScaling validates the scaling coordinator's bounds.
func (c *Config) validateScaling() error {
	if c.Scaling.MinInstances < 1 {
		return fmt.Errorf("SCALING_MIN_INSTANCES must be at least 1")
	}
	if c.Scaling.MaxInstances < c.Scaling.MinInstances {
		return fmt.Errorf("SCALING_MAX_INSTANCES must be >= SCALING_MIN_INSTANCES")
	}
	if !validScalingPolicies[c.Scaling.Policy] {
		return fmt.Errorf("SCALING_POLICY must be one of: MANUAL, CPU_BASED, QUEUE_BASED, LATENCY_BASED, HYBRID")
	}
	if c.Scaling.ScaleUpThreshold <= c.Scaling.ScaleDownThreshold {
		return fmt.Errorf("SCALING_SCALE_UP_THRESHOLD must be greater than SCALING_SCALE_DOWN_THRESHOLD")
	}
	return nil
}

var validScalingPolicies = map[string]bool{
	"MANUAL":        true,
	"CPU_BASED":     true,
	"QUEUE_BASED":   true,
	"LATENCY_BASED": true,
	"HYBRID":        true,
}

// validateCircuitBreaker validates C7's defaults.
func (c *Config) validateCircuitBreaker() error {
	if c.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("CIRCUIT_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if c.CircuitBreaker.SuccessThreshold < 1 {
		return fmt.Errorf("CIRCUIT_BREAKER_SUCCESS_THRESHOLD must be at least 1")
	}
	if c.CircuitBreaker.RecoveryTimeout < time.Second {
		return fmt.Errorf("CIRCUIT_BREAKER_RECOVERY_TIMEOUT must be at least 1s")
	}
	return nil
}

// validateHealth validates C8's defaults.
func (c *Config) validateHealth() error {
	if c.Health.CheckInterval < time.Second {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be at least 1s")
	}
	if c.Health.Retries < 0 {
		return fmt.Errorf("HEALTH_RETRIES must be non-negative")
	}
	if c.Health.UnhealthyThreshold < 1 {
		return fmt.Errorf("HEALTH_UNHEALTHY_THRESHOLD must be at least 1")
	}
	return nil
}

// validateDeadLetter validates C9's thresholds.
func (c *Config) validateDeadLetter() error {
	if c.DeadLetter.PoisonThreshold < 1 {
		return fmt.Errorf("DEAD_LETTER_POISON_THRESHOLD must be at least 1")
	}
	if c.DeadLetter.AutoRecoveryMinConfidence < 0 || c.DeadLetter.AutoRecoveryMinConfidence > 1 {
		return fmt.Errorf("DEAD_LETTER_AUTO_RECOVERY_MIN_CONFIDENCE must be between 0 and 1")
	}
	if c.DeadLetter.RetentionDays < 1 {
		return fmt.Errorf("DEAD_LETTER_RETENTION_DAYS must be at least 1")
	}
	return nil
}

// validateErrorCoord validates C10's thresholds.
func (c *Config) validateErrorCoord() error {
	if c.ErrorCoord.MaxRetryAttempts < 0 {
		return fmt.Errorf("ERROR_COORD_MAX_RETRY_ATTEMPTS must be non-negative")
	}
	if c.ErrorCoord.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("ERROR_COORD_CIRCUIT_BREAKER_THRESHOLD must be at least 1")
	}
	if c.ErrorCoord.RetentionDays < 1 {
		return fmt.Errorf("ERROR_COORD_RETENTION_DAYS must be at least 1")
	}
	return nil
}

// validLogLevels defines the allowed log levels.
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats.
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration.
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
