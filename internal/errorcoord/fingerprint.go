// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package errorcoord

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

var (
	numberPattern = regexp.MustCompile(`\d+`)
	uuidPattern   = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	emailPattern  = regexp.MustCompile(`\S+@\S+\.\S+`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	pathPattern   = regexp.MustCompile(`/[\w/.-]+`)
)

// extractMessageTemplate replaces dynamic content (numbers, UUIDs, emails,
// URLs, file paths) in an error message with placeholders, so that
// errors differing only in their dynamic content still share a
// fingerprint.
func extractMessageTemplate(msg string) string {
	template := uuidPattern.ReplaceAllString(msg, "{uuid}")
	template = numberPattern.ReplaceAllString(template, "{number}")
	template = emailPattern.ReplaceAllString(template, "{email}")
	template = urlPattern.ReplaceAllString(template, "{url}")
	template = pathPattern.ReplaceAllString(template, "{path}")
	return template
}

// fingerprint computes the 16-hex-character SHA-256 grouping key over
// {error_type, error_class, service_name, operation, message_template}.
// Field order is fixed (not alphabetically re-sorted as the original's
// json.dumps(sort_keys=True) does) since a fixed Go format string is
// equally stable across runs and avoids a map-ordering dependency.
func fingerprint(errType domain.ErrorType, errorClass, serviceName, operation, errMessage string) string {
	template := extractMessageTemplate(errMessage)
	data := string(errType) + "|" + errorClass + "|" + serviceName + "|" + operation + "|" + template
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:16]
}

// determineErrorSource infers an ErrorSource from context, mirroring the
// original implementation's role/service-name heuristic.
func determineErrorSource(ctx domain.ErrorContext) domain.ErrorSource {
	role := string(ctx.Role)
	name := strings.ToLower(ctx.ServiceName)
	switch {
	case role == "SI" || strings.Contains(name, "si_"):
		return domain.SourceSIService
	case role == "APP" || strings.Contains(name, "app_"):
		return domain.SourceAPPService
	case role == "HYBRID" || strings.Contains(name, "hybrid_"):
		return domain.SourceHybridService
	case strings.Contains(name, "core_"):
		return domain.SourceCorePlatform
	case strings.Contains(name, "external") || strings.Contains(name, "api"):
		return domain.SourceExternalSystem
	default:
		return domain.SourceCorePlatform
	}
}
