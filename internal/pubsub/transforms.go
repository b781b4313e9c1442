// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package pubsub

import (
	"fmt"
	"time"
)

// applyTransforms runs each named transform in order against a copy of
// payload, returning the transformed copy. A transform that errors leaves
// the payload unchanged for that step rather than aborting the chain.
func applyTransforms(payload map[string]any, names []string) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	for _, name := range names {
		transformed, err := applyTransform(name, out)
		if err != nil {
			continue
		}
		out = transformed
	}
	return out
}

func applyTransform(name string, payload map[string]any) (map[string]any, error) {
	switch name {
	case "add_timestamp":
		return addTimestamp(payload), nil
	case "flatten_payload":
		return flattenPayload(payload), nil
	case "extract_fields":
		return extractFields(payload)
	default:
		return payload, nil
	}
}

func addTimestamp(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["_timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return out
}

// flattenPayload dotted-flattens nested maps, e.g. {"a":{"b":1}} becomes
// {"a.b":1}.
func flattenPayload(payload map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", payload)
	return out
}

func flattenInto(out map[string]any, prefix string, payload map[string]any) {
	for k, v := range payload {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

// extractFields allow-lists the keys listed in the []string stashed
// under "_extract_fields" on the payload by the caller; any other payload
// is passed through unchanged since there is no allow-list to apply.
func extractFields(payload map[string]any) (map[string]any, error) {
	raw, ok := payload["_extract_fields"]
	if !ok {
		return payload, nil
	}
	fields, ok := raw.([]string)
	if !ok {
		return payload, fmt.Errorf("pubsub: _extract_fields must be []string")
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := payload[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}
