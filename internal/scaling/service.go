// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package scaling

import (
	"context"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/redisrouter"
)

// routerInstanceService adapts a redisrouter.Coordinator to suture.Service
// so the scaling coordinator can supervise it through
// internal/supervisor's router layer.
type routerInstanceService struct {
	coordinator *redisrouter.Coordinator
}

// Serve starts the wrapped Coordinator and blocks until ctx is cancelled,
// satisfying suture.Service.
func (s *routerInstanceService) Serve(ctx context.Context) error {
	if err := s.coordinator.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.coordinator.Stop()
	return ctx.Err()
}
