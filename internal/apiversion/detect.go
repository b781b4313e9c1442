// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package apiversion

import (
	"net/http"
	"regexp"
)

var pathVersionPattern = regexp.MustCompile(`^/api/(v\d+)(/|$)`)

// acceptVersionPattern matches Accept: application/vnd.<brand>.v<N>+json.
func acceptVersionPattern(brand string) *regexp.Regexp {
	return regexp.MustCompile(`application/vnd\.` + regexp.QuoteMeta(brand) + `\.(v\d+)\+json`)
}

// DetectVersion resolves the requested API version per spec.md §4.11's
// precedence: path segment, then Accept header content negotiation,
// then the API-Version header, else the table's latest stable version.
func DetectVersion(r *http.Request, t *Table) string {
	if m := pathVersionPattern.FindStringSubmatch(r.URL.Path); m != nil {
		return m[1]
	}

	if accept := r.Header.Get("Accept"); accept != "" {
		if m := acceptVersionPattern(t.Brand()).FindStringSubmatch(accept); m != nil {
			return m[1]
		}
	}

	if hv := r.Header.Get("API-Version"); hv != "" {
		return hv
	}

	return t.LatestStable()
}
