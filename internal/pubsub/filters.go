// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package pubsub

import (
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// passesFilters reports whether pub satisfies every named filter the
// subscription carries. Built-in filters are evaluated specially; any
// other name is evaluated as direct equality against a matching payload
// or header key.
func passesFilters(sub *domain.Subscription, pub domain.Publication) bool {
	for name, want := range sub.Filters {
		var ok bool
		switch name {
		case "tenant_filter":
			ok = tenantFilter(want, pub)
		case "priority_filter":
			ok = priorityFilter(want, pub)
		case "time_filter":
			ok = timeFilter(want, pub)
		default:
			ok = equalityFilter(name, want, pub)
		}
		if !ok {
			return false
		}
	}
	return true
}

func tenantFilter(want any, pub domain.Publication) bool {
	wantStr, ok := want.(string)
	if !ok {
		return true
	}
	return pub.TenantID == wantStr
}

func priorityFilter(want any, pub domain.Publication) bool {
	switch v := want.(type) {
	case int:
		return pub.Priority >= v
	case float64:
		return pub.Priority >= int(v)
	default:
		return true
	}
}

// timeFilter expects want to be a map with optional "from"/"until" RFC3339
// bounds and passes iff pub.PublishedAt falls within them.
func timeFilter(want any, pub domain.Publication) bool {
	bounds, ok := want.(map[string]any)
	if !ok {
		return true
	}
	if from, ok := bounds["from"].(string); ok {
		if t, err := time.Parse(time.RFC3339, from); err == nil && pub.PublishedAt.Before(t) {
			return false
		}
	}
	if until, ok := bounds["until"].(string); ok {
		if t, err := time.Parse(time.RFC3339, until); err == nil && pub.PublishedAt.After(t) {
			return false
		}
	}
	return true
}

// equalityFilter checks for an exact match of want against either the
// payload or the header named key.
func equalityFilter(key string, want any, pub domain.Publication) bool {
	if v, ok := pub.Payload[key]; ok {
		return v == want
	}
	if v, ok := pub.Headers[key]; ok {
		wantStr, ok := want.(string)
		return ok && v == wantStr
	}
	return false
}
