// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the routing fabric: event bus, queue manager,
// pub-sub coordinator, message router, scaling coordinator, circuit
// breaker, health checker, and dead-letter handler.

var (
	// Event bus (C1)
	EventBusQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventbus_queue_depth",
			Help: "Current number of events queued per priority level",
		},
		[]string{"priority"},
	)

	EventBusEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_emitted_total",
			Help: "Total events emitted onto the event bus",
		},
		[]string{"scope"},
	)

	EventBusHandlerOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_handler_outcomes_total",
			Help: "Outcomes of event handler invocations",
		},
		[]string{"result"}, // success, failure, dead_letter
	)

	// Queue manager (C2)
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current number of messages resident in a named queue",
		},
		[]string{"queue", "status"},
	)

	QueueAcks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_acks_total",
			Help: "Total acknowledged messages per queue",
		},
		[]string{"queue"},
	)

	QueueNacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_nacks_total",
			Help: "Total negatively acknowledged messages per queue",
		},
		[]string{"queue"},
	)

	QueueDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_dead_lettered_total",
			Help: "Total messages transitioned to DEAD_LETTER per queue",
		},
		[]string{"queue"},
	)

	// Pub-sub coordinator (C3)
	PubsubPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_published_total",
			Help: "Total publications accepted per topic",
		},
		[]string{"topic"},
	)

	PubsubDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_delivered_total",
			Help: "Total successful subscription deliveries per topic",
		},
		[]string{"topic"},
	)

	PubsubPendingAcks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pubsub_pending_acks",
			Help: "Current size of the AT_LEAST_ONCE pending-acknowledgment set",
		},
	)

	// Message router (C4/C5)
	RouterDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_deliveries_total",
			Help: "Total message deliveries attempted per strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	RouterRuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_rule_matches_total",
			Help: "Total routing-rule matches per rule id",
		},
		[]string{"rule_id"},
	)

	RouterEndpoints = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "router_endpoints",
			Help: "Currently registered endpoints per role and health status",
		},
		[]string{"role", "health"},
	)

	// Scaling coordinator (C6)
	ScalingInstances = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scaling_instances",
			Help: "Current number of live router instances",
		},
	)

	ScalingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaling_decisions_total",
			Help: "Total scaling decisions made",
		},
		[]string{"decision"}, // scale_up, scale_down, none
	)

	// Circuit breaker (C7)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total failures recorded per circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_timeouts_total",
			Help: "Total call timeouts recorded per circuit breaker",
		},
		[]string{"name"},
	)

	// Health checker (C8)
	HealthCheckStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Per-service health status (0=healthy, 1=degraded, 2=unhealthy, 3=unknown)",
		},
		[]string{"service"},
	)

	HealthCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "health_check_duration_seconds",
			Help:    "Duration of a single health probe",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// Dead letter handler (C9)
	DeadLetterReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letter_received_total",
			Help: "Total messages entering the dead-letter handler per failure reason",
		},
		[]string{"reason"},
	)

	DeadLetterPoisonDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dead_letter_poison_detected_total",
			Help: "Total dead letters flagged as poison messages",
		},
	)

	DeadLetterRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letter_recoveries_total",
			Help: "Total automatic recovery attempts per action and outcome",
		},
		[]string{"action", "outcome"},
	)

	DeadLetterQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dead_letter_queue_size",
			Help: "Current number of entries resident in the dead-letter store",
		},
	)

	// Error coordination facade (C10)
	ErrorsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_handled_total",
			Help: "Total errors routed through the error coordination facade per type and severity",
		},
		[]string{"error_type", "severity"},
	)

	ErrorPatternsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "error_patterns_tracked",
			Help: "Current number of distinct error fingerprints being tracked",
		},
	)

	ErrorPatternEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "error_pattern_escalations_total",
			Help: "Total error patterns that crossed their escalation threshold",
		},
	)
)

// CircuitStateValue maps a circuit-breaker state name to the gauge value
// convention used by CircuitBreakerState above.
func CircuitStateValue(state string) float64 {
	switch state {
	case "OPEN":
		return 2
	case "HALF_OPEN":
		return 1
	default:
		return 0
	}
}

// ServiceHealthValue maps a ServiceHealthStatus to the gauge value
// convention used by HealthCheckStatus above.
func ServiceHealthValue(status string) float64 {
	switch status {
	case "HEALTHY":
		return 0
	case "DEGRADED":
		return 1
	case "UNHEALTHY":
		return 2
	default:
		return 3
	}
}
