// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import (
	"strings"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

var formatErrorKeywords = []string{"json", "parse", "decode", "format", "schema", "validation"}

// builtinDetectors returns the four detectors spec.md §4.9 names, bound
// to cfg's thresholds.
func builtinDetectors(cfg config.DeadLetterConfig) []Detector {
	return []Detector{
		highRetryCountDetector(cfg),
		recurringFailureDetector(cfg),
		malformedPayloadDetector(),
		oversizedOrDeepPayloadDetector(cfg),
	}
}

func highRetryCountDetector(cfg config.DeadLetterConfig) Detector {
	threshold := cfg.PoisonThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return func(dl *domain.DeadLetterMessage, _ []*domain.DeadLetterMessage) bool {
		return dl.Failure.RetryCount >= threshold
	}
}

func recurringFailureDetector(cfg config.DeadLetterConfig) Detector {
	threshold := cfg.RecurrenceThreshold
	if threshold <= 0 {
		threshold = 3
	}
	return func(dl *domain.DeadLetterMessage, recent []*domain.DeadLetterMessage) bool {
		count := 0
		msgID := dl.Original.ID
		correlationID := dl.Original.CorrelationID
		for _, other := range recent {
			if other.Original.ID == msgID || (correlationID != "" && other.Original.CorrelationID == correlationID) {
				count++
			}
		}
		return count >= threshold
	}
}

func malformedPayloadDetector() Detector {
	return func(dl *domain.DeadLetterMessage, _ []*domain.DeadLetterMessage) bool {
		if dl.Failure.Reason == domain.FailureInvalidFormat {
			return true
		}
		lower := strings.ToLower(dl.Failure.ErrorMessage)
		for _, kw := range formatErrorKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
}

func oversizedOrDeepPayloadDetector(cfg config.DeadLetterConfig) Detector {
	maxBytes := cfg.OversizedBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20 // 1MB
	}
	maxDepth := cfg.MaxNestingDepth
	if maxDepth <= 0 {
		maxDepth = 20
	}
	return func(dl *domain.DeadLetterMessage, _ []*domain.DeadLetterMessage) bool {
		payload := dl.Original.Payload
		if payloadByteSize(payload) > maxBytes {
			return true
		}
		return payloadDepth(payload, 0) > maxDepth
	}
}

// payloadByteSize estimates serialized size without actually marshaling,
// mirroring the original implementation's len(str(payload)) check closely
// enough for the threshold to behave the same in practice.
func payloadByteSize(payload map[string]any) int {
	total := 0
	for k, v := range payload {
		total += len(k) + valueSize(v)
	}
	return total
}

func valueSize(v any) int {
	switch val := v.(type) {
	case string:
		return len(val)
	case map[string]any:
		return payloadByteSize(val)
	case []any:
		size := 0
		for _, item := range val {
			size += valueSize(item)
		}
		return size
	default:
		return 8
	}
}

func payloadDepth(v any, depth int) int {
	switch val := v.(type) {
	case map[string]any:
		max := depth
		for _, item := range val {
			if d := payloadDepth(item, depth+1); d > max {
				max = d
			}
		}
		return max
	case []any:
		max := depth
		for _, item := range val {
			if d := payloadDepth(item, depth+1); d > max {
				max = d
			}
		}
		return max
	default:
		return depth
	}
}

// detectPoison runs every registered detector, short-circuiting on the
// first that fires.
func detectPoison(detectors []Detector, dl *domain.DeadLetterMessage, recent []*domain.DeadLetterMessage) bool {
	for _, detect := range detectors {
		if detect(dl, recent) {
			return true
		}
	}
	return false
}
