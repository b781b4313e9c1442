// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package redisrouter

import (
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// endpointRecord is the Redis wire shape of a ServiceEndpoint. Callback is
// deliberately absent: it is an in-process closure and has no
// cross-process representation, per the package doc comment.
type endpointRecord struct {
	ID                string         `json:"id"`
	ServiceName       string         `json:"service_name"`
	Role              domain.Role    `json:"role"`
	URL               string         `json:"url"`
	Priority          int            `json:"priority"`
	Active            bool           `json:"active"`
	LoadFactor        float64        `json:"load_factor"`
	LastActivity      time.Time      `json:"last_activity"`
	Health            domain.HealthStatus `json:"health"`
	Tags              []string       `json:"tags,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	RequestsPerMinute float64        `json:"requests_per_minute"`
	AvgResponseTimeMs float64        `json:"avg_response_time_ms"`
	ErrorRate         float64        `json:"error_rate"`
	ActiveConnections int            `json:"active_connections"`
}

func recordFromEndpoint(ep *domain.ServiceEndpoint) endpointRecord {
	return endpointRecord{
		ID:                ep.ID,
		ServiceName:       ep.ServiceName,
		Role:              ep.Role,
		URL:               ep.URL,
		Priority:          ep.Priority,
		Active:            ep.Active,
		LoadFactor:        ep.LoadFactor,
		LastActivity:      ep.LastActivity,
		Health:            ep.Health,
		Tags:              ep.Tags,
		Metadata:          ep.Metadata,
		RequestsPerMinute: ep.RequestsPerMinute,
		AvgResponseTimeMs: ep.AvgResponseTimeMs,
		ErrorRate:         ep.ErrorRate,
		ActiveConnections: ep.ActiveConnections,
	}
}

// endpoint reconstructs a ServiceEndpoint from its wire record. callback is
// supplied by the caller for endpoints this replica itself registered
// in-process; every other replica's endpoint loads with a nil Callback and
// is delivered to over the event bus instead (see router.deliverTo).
func (r endpointRecord) endpoint(callback domain.Callback) *domain.ServiceEndpoint {
	return &domain.ServiceEndpoint{
		ID:                r.ID,
		ServiceName:       r.ServiceName,
		Role:              r.Role,
		URL:               r.URL,
		Callback:          callback,
		Priority:          r.Priority,
		Active:            r.Active,
		LoadFactor:        r.LoadFactor,
		LastActivity:      r.LastActivity,
		Health:            r.Health,
		Tags:              r.Tags,
		Metadata:          r.Metadata,
		RequestsPerMinute: r.RequestsPerMinute,
		AvgResponseTimeMs: r.AvgResponseTimeMs,
		ErrorRate:         r.ErrorRate,
		ActiveConnections: r.ActiveConnections,
	}
}

// activeRouteRecord is a short-lived record of an in-flight routing
// decision, kept for introspection and for the cleanup loop's expiry sweep.
type activeRouteRecord struct {
	SourceService string      `json:"source_service"`
	TargetRole    domain.Role `json:"target_role"`
	Operation     string      `json:"operation"`
	RoutedAt      time.Time   `json:"routed_at"`
	ExpiresAt     time.Time   `json:"expires_at"`
}

// instanceRecord is a replica's heartbeat record.
type instanceRecord struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// statsRecord is a replica's periodic routing-statistics snapshot.
type statsRecord struct {
	InstanceID       string  `json:"instance_id"`
	MessagesRouted   int64   `json:"messages_routed"`
	DeliveryFailures int64   `json:"delivery_failures"`
	EndpointCount    int     `json:"endpoint_count"`
	RuleCount        int     `json:"rule_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}
