// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package apiversion

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CORSConfig mirrors the teacher's go-chi/cors wiring, defaulting to no
// allowed origins so a deployment must opt in explicitly.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

func defaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Role", "API-Version"},
	}
}

// NewServer wires the full C11 HTTP boundary: global middleware
// (request id, panic recovery, CORS), the version/role/rate-limit chain
// scoped to `/api`, and the routing, version-discovery, health, and
// metrics endpoints.
func NewServer(t *Table, rt MessageRouter, healthz http.HandlerFunc, corsCfg *CORSConfig) http.Handler {
	cfg := defaultCORSConfig()
	if corsCfg != nil {
		cfg = *corsCfg
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
	}))

	h := NewHandler(rt)

	r.Route("/api", func(r chi.Router) {
		r.Use(VersionMiddleware(t))
		r.Get("/versions", h.Versions(t))

		r.Group(func(r chi.Router) {
			r.Use(RoleMiddleware())
			r.Use(RateLimitMiddleware(t))
			r.Post("/v{version}/route", h.Route)
			r.Post("/route", h.Route)
		})
	})

	if healthz != nil {
		r.Get("/healthz", healthz)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
