// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/labnotify/internal/config"
	"github.com/tomtom215/labnotify/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("version", version).
		Str("backend", cfg.Backend.BaseURL).
		Bool("api", cfg.Server.Enabled).
		Bool("events", cfg.Events.Enabled).
		Msg("Starting LabNotify")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	a, err := newApp(ctx, cfg, cancel)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to start")
	}

	if err := a.run(ctx); err != nil {
		logging.Error().Err(err).Msg("Supervisor stopped with error")
		os.Exit(1)
	}
	logging.Info().Msg("LabNotify stopped")
}
