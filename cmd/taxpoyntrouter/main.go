// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package main is the entry point for the taxpoynt message routing
// fabric.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and an
//     optional config file (Koanf v2)
//  2. Platform: Construct the event bus, queue manager, pub-sub
//     coordinator, scaling coordinator (which owns the pool of Redis-
//     backed router replicas), circuit breaker registry, health checker,
//     dead-letter handler, and error-coordination facade, wiring every
//     background loop onto the shared supervisor tree
//  3. HTTP Server: The version coordinator's boundary — version
//     detection, role validation, rate limiting, and the `/route`,
//     `/versions`, `/healthz`, and `/metrics` endpoints
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, an optional config.yaml, then
// built-in defaults. REDIS_URL (or the shared-store DSN equivalent) and
// ENVIRONMENT (dev/prod gating of the fail-fast routing contract) are
// the two variables every deployment sets explicitly.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: stop
// accepting new HTTP connections, cancel the supervisor tree's context,
// wait for every background loop to drain up to its configured shutdown
// timeout, then close the shared store connection.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/platform"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("redis_prefix", cfg.Redis.Prefix).
		Msg("starting taxpoynt routing fabric")

	p, err := platform.Build(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build platform")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := p.Start(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      p.HTTPHandler(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("context canceled, shutting down HTTP server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	p.Shutdown()
	logging.Info().Msg("taxpoynt routing fabric stopped")
}
