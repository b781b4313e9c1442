// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package scaling

import "time"

// InstanceStats is a single instance's rolling operational snapshot,
// collected every 10s and fed into both the health evaluation and the
// scaling decision.
type InstanceStats struct {
	InstanceID       string    `json:"instance_id"`
	MessagesPerSec   float64   `json:"messages_per_sec"`
	LatencyMs        float64   `json:"latency_ms"`
	ErrorRate        float64   `json:"error_rate"`
	UptimeSeconds    float64   `json:"uptime_seconds"`
	HealthScore      float64   `json:"health_score"` // [0,1], 1 = fully healthy
	LastHeartbeat    time.Time `json:"last_heartbeat"`
	CollectedAt      time.Time `json:"collected_at"`
}

// loadScore is the instance-selection weight used by distributeMessage:
// 0.4*(latency/1000) + 0.3*error_rate + 0.2*(load/1000) + 0.1*(1-health).
// Lower is better. "load" is approximated by messages/sec, the only
// demand signal an instance reports about itself.
func (s InstanceStats) loadScore() float64 {
	return 0.4*(s.LatencyMs/1000) + 0.3*s.ErrorRate + 0.2*(s.MessagesPerSec/1000) + 0.1*(1-s.HealthScore)
}

// ScalingEvent is one entry in the bounded scaling-event log: a record of
// an instance count change and why it happened.
type ScalingEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	Reason       string    `json:"reason"`
	BeforeCount  int       `json:"before_count"`
	AfterCount   int       `json:"after_count"`
}

// Policy is the scaling-decision driver.
type Policy string

const (
	PolicyManual        Policy = "MANUAL"
	PolicyCPUBased       Policy = "CPU_BASED"
	PolicyQueueBased      Policy = "QUEUE_BASED"
	PolicyLatencyBased    Policy = "LATENCY_BASED"
	PolicyHybrid          Policy = "HYBRID"
)
