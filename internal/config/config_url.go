// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package config

import (
	"fmt"
	"net/url"
)

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// Validates: scheme (http/https) and host present; paths and query params
// are not checked.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	return nil
}

// validateRedisURL validates that the shared-store URL is a well-formed
// redis://, rediss:// or unix:// DSN: the scheme must be one of those, and
// a host is required except for unix. The path is not checked.
func validateRedisURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("REDIS_URL failed to parse: %w", err)
	}

	validSchemes := map[string]bool{"redis": true, "rediss": true, "unix": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("REDIS_URL scheme must be redis, rediss, or unix, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Scheme != "unix" && parsedURL.Host == "" {
		return fmt.Errorf("REDIS_URL host is required (e.g., redis://localhost:6379/0)")
	}

	return nil
}
