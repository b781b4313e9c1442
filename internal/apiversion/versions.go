// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package apiversion

import (
	"sort"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// Lifecycle is an API version's stage in its support lifecycle.
type Lifecycle string

const (
	LifecycleDevelopment Lifecycle = "DEVELOPMENT"
	LifecycleStable      Lifecycle = "STABLE"
	LifecycleDeprecated  Lifecycle = "DEPRECATED"
	LifecycleSunset      Lifecycle = "SUNSET"
	LifecycleArchived    Lifecycle = "ARCHIVED"
)

// Compatibility describes how a version relates to its predecessor.
type Compatibility string

const (
	CompatibilityFull              Compatibility = "FULL"
	CompatibilityBackward          Compatibility = "BACKWARD"
	CompatibilityBreaking          Compatibility = "BREAKING"
	CompatibilityMigrationRequired Compatibility = "MIGRATION_REQUIRED"
)

// RoleRateLimit is the requests-per-window allowance for one role under
// one API version.
type RoleRateLimit struct {
	Requests int
	Window   time.Duration
}

// Version describes one registered API surface.
type Version struct {
	Major          int
	Full           string // e.g. "v1.3.0"
	Lifecycle      Lifecycle
	Compatibility  Compatibility
	DeprecatedAt   *time.Time
	SunsetAt       *time.Time
	MigrationGuide string
	RoleLimits     map[domain.Role]RoleRateLimit
}

// Table is the version lifecycle/compatibility/rate-limit registry C11
// consults on every request.
type Table struct {
	brand        string
	latestStable string
	versions     map[string]*Version
}

// defaultRoleLimits mirrors the original platform's per-role throttles:
// SI integrations run high-volume batch sync, APP is interactive and
// comparatively low-volume, HYBRID sits in between.
func defaultRoleLimits() map[domain.Role]RoleRateLimit {
	return map[domain.Role]RoleRateLimit{
		domain.RoleSI:                {Requests: 1000, Window: time.Minute},
		domain.RoleAPP:               {Requests: 300, Window: time.Minute},
		domain.RoleHybrid:            {Requests: 600, Window: time.Minute},
		domain.RoleHybridCoordinator: {Requests: 600, Window: time.Minute},
	}
}

// NewTable builds the version table, seeding only the configured
// latest-stable version as STABLE/FULL. Further versions are added with
// RegisterVersion.
func NewTable(cfg config.VersionConfig) *Table {
	t := &Table{
		brand:        cfg.Brand,
		latestStable: cfg.LatestStable,
		versions:     make(map[string]*Version),
	}

	major := parseMajor(cfg.LatestStable)
	t.versions[cfg.LatestStable] = &Version{
		Major:         major,
		Full:          cfg.LatestStable + ".0.0",
		Lifecycle:     LifecycleStable,
		Compatibility: CompatibilityFull,
		RoleLimits:    defaultRoleLimits(),
	}
	return t
}

// RegisterVersion adds or replaces an entry in the table, e.g. from the
// platform wiring layer introducing a new major version at startup.
func (t *Table) RegisterVersion(name string, v *Version) {
	if v.RoleLimits == nil {
		v.RoleLimits = defaultRoleLimits()
	}
	t.versions[name] = v
}

// Deprecate marks name DEPRECATED with a sunset date and optional
// migration guide URL, per spec.md §4.11's lifecycle transitions.
func (t *Table) Deprecate(name string, sunset time.Time, migrationGuide string) bool {
	v, ok := t.versions[name]
	if !ok {
		return false
	}
	now := time.Now().UTC()
	v.Lifecycle = LifecycleDeprecated
	v.DeprecatedAt = &now
	v.SunsetAt = &sunset
	v.MigrationGuide = migrationGuide
	return true
}

// Lookup returns the named version, falling back to the latest stable
// version when name is empty or unknown.
func (t *Table) Lookup(name string) (string, *Version, bool) {
	if v, ok := t.versions[name]; ok {
		return name, v, true
	}
	if v, ok := t.versions[t.latestStable]; ok {
		return t.latestStable, v, true
	}
	return "", nil, false
}

// LatestStable returns the configured latest-stable version name.
func (t *Table) LatestStable() string {
	return t.latestStable
}

// Brand returns the content-negotiation vendor brand (the `<brand>` in
// `application/vnd.<brand>.vN+json`).
func (t *Table) Brand() string {
	return t.brand
}

// SortedNames returns every registered version name, newest major first.
func (t *Table) SortedNames() []string {
	names := make([]string, 0, len(t.versions))
	for name := range t.versions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return t.versions[names[i]].Major > t.versions[names[j]].Major
	})
	return names
}

func parseMajor(version string) int {
	n := 0
	for _, r := range version {
		if r < '0' || r > '9' {
			continue
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 1
	}
	return n
}
