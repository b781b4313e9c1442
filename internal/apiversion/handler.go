// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package apiversion

import (
	"encoding/json"
	"net/http"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// MessageRouter is the subset of *router.Router the version coordinator
// drives, kept as an interface so this package never imports router and
// stays a pure boundary concern.
type MessageRouter interface {
	RouteMessage(targetRole domain.Role, operation string, payload map[string]any, priority domain.Priority, tenantID, correlationID, sourceService string) (map[string]any, error)
}

type routeRequest struct {
	Operation     string         `json:"operation"`
	Payload       map[string]any `json:"payload"`
	Priority      string         `json:"priority"`
	TenantID      string         `json:"tenant_id"`
	CorrelationID string         `json:"correlation_id"`
	SourceService string         `json:"source_service"`
}

// Handler exposes the routing fabric's `(role, operation)` entry point
// over HTTP, behind version detection, role validation, and rate limiting.
type Handler struct {
	router MessageRouter
}

// NewHandler builds a Handler backed by rt.
func NewHandler(rt MessageRouter) *Handler {
	return &Handler{router: rt}
}

// Route handles POST /api/v{version}/route, dispatching the decoded
// request body to the router under the caller's resolved role.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Operation == "" {
		writeJSONError(w, http.StatusBadRequest, "operation is required")
		return
	}

	role := RoleFromContext(r.Context())
	priority := domain.ParsePriority(req.Priority)

	result, err := h.router.RouteMessage(role, req.Operation, req.Payload, priority, req.TenantID, req.CorrelationID, "api:"+string(role))
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// Versions handles GET /api/versions, listing the version table for
// client discovery.
func (h *Handler) Versions(t *Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := t.SortedNames()
		out := make([]map[string]any, 0, len(names))
		for _, name := range names {
			_, v, _ := t.Lookup(name)
			out = append(out, map[string]any{
				"version":       name,
				"full":          v.Full,
				"lifecycle":     v.Lifecycle,
				"compatibility": v.Compatibility,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"versions": out, "latest_stable": t.LatestStable()})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
