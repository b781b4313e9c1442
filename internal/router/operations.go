// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package router

import (
	"strings"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

var queryPrefixes = []string{"get_", "list_", "retrieve_", "fetch_", "check_", "status", "health", "info", "dashboard"}

var commandPrefixes = []string{
	"create_", "submit_", "update_", "delete_", "process_", "generate_",
	"sync_", "register_", "validate_", "authenticate", "refresh",
}

var eventPrefixes = []string{"notify_", "alert_", "broadcast_"}

// inferMessageType maps an operation name to a MessageType by prefix,
// defaulting to COMMAND when no prefix matches.
func inferMessageType(operation string) domain.MessageType {
	op := strings.ToLower(operation)
	for _, p := range eventPrefixes {
		if strings.HasPrefix(op, p) {
			return domain.MessageTypeEvent
		}
	}
	for _, p := range queryPrefixes {
		if strings.HasPrefix(op, p) {
			return domain.MessageTypeQuery
		}
	}
	for _, p := range commandPrefixes {
		if strings.HasPrefix(op, p) {
			return domain.MessageTypeCommand
		}
	}
	return domain.MessageTypeCommand
}

// scopeForRole derives the event-bus scope an emitted message.<type> event
// should carry, for endpoints with no in-process callback.
func scopeForRole(role domain.Role) domain.Scope {
	switch role {
	case domain.RoleSI:
		return domain.ScopeSIServices
	case domain.RoleAPP:
		return domain.ScopeAPPServices
	case domain.RoleHybrid, domain.RoleHybridCoordinator:
		return domain.ScopeHybrid
	default:
		return domain.ScopeGlobal
	}
}
