// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package apiversion

import (
	"context"
	"math"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
)

type contextKey int

const (
	versionContextKey contextKey = iota
	roleContextKey
)

// VersionFromContext returns the version name resolved for this request.
func VersionFromContext(ctx context.Context) string {
	v, _ := ctx.Value(versionContextKey).(string)
	return v
}

// RoleFromContext returns the already-resolved role for this request.
func RoleFromContext(ctx context.Context) domain.Role {
	r, _ := ctx.Value(roleContextKey).(domain.Role)
	return r
}

// VersionMiddleware detects the request's API version, injects the
// version headers spec.md §4.11 names on every response, and rejects
// requests against an ARCHIVED version with 410 Gone. DEPRECATED and
// SUNSET versions are still served, with the deprecation headers set.
func VersionMiddleware(t *Table) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requested := DetectVersion(r, t)
			name, v, ok := t.Lookup(requested)
			if !ok {
				http.Error(w, "no API versions registered", http.StatusInternalServerError)
				return
			}

			w.Header().Set("API-Version", name)
			w.Header().Set("API-Version-Full", v.Full)
			w.Header().Set("API-Version-Status", string(v.Lifecycle))
			if v.Lifecycle == LifecycleDeprecated || v.Lifecycle == LifecycleSunset {
				w.Header().Set("Deprecation", "true")
				if v.SunsetAt != nil {
					w.Header().Set("Sunset", v.SunsetAt.UTC().Format(http.TimeFormat))
				}
				if v.MigrationGuide != "" {
					w.Header().Set("API-Migration-Guide", v.MigrationGuide)
				}
			}

			if v.Lifecycle == LifecycleArchived {
				http.Error(w, "API version "+name+" has been archived", http.StatusGone)
				return
			}

			ctx := context.WithValue(r.Context(), versionContextKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleMiddleware reads the already-resolved role from the X-Role header
// (spec.md's role is a routing dimension fed by an upstream principal,
// not an authentication token this component validates itself) and
// rejects a request with no X-Role header with 400. Roles the resolved
// version has no budget for are rejected by RateLimitMiddleware.
func RoleMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := domain.Role(r.Header.Get("X-Role"))
			if role == "" {
				http.Error(w, "X-Role header is required", http.StatusBadRequest)
				return
			}
			ctx := context.WithValue(r.Context(), roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// roleLimiters holds one token-bucket limiter per (version, role) pair,
// sized from the version's RoleRateLimit, lazily created on first use.
type roleLimiters struct {
	mu       sync.Mutex
	table    *Table
	limiters map[string]*rate.Limiter
}

func newRoleLimiters(t *Table) *roleLimiters {
	return &roleLimiters{table: t, limiters: make(map[string]*rate.Limiter)}
}

func (rl *roleLimiters) limiterFor(version string, role domain.Role, limit RoleRateLimit) *rate.Limiter {
	key := version + "|" + string(role)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[key]; ok {
		return l
	}
	perSecond := float64(limit.Requests) / limit.Window.Seconds()
	l := rate.NewLimiter(rate.Limit(perSecond), int(math.Max(1, float64(limit.Requests))))
	rl.limiters[key] = l
	return l
}

// RateLimitMiddleware enforces the per-role, per-version request budget
// spec.md §4.11 names. Must run after VersionMiddleware and RoleMiddleware.
func RateLimitMiddleware(t *Table) func(http.Handler) http.Handler {
	rl := newRoleLimiters(t)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := VersionFromContext(r.Context())
			role := RoleFromContext(r.Context())

			_, v, ok := t.Lookup(version)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			limit, ok := v.RoleLimits[role]
			if !ok {
				logging.Warn().Str("role", string(role)).Str("version", version).Msg("no rate limit configured for role, rejecting")
				http.Error(w, "role not permitted for this API version", http.StatusForbidden)
				return
			}

			if !rl.limiterFor(version, role, limit).Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain composes middleware in application order (first listed runs
// outermost), matching the teacher's Chi route-group Use() ordering.
func Chain(handler http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}
