// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/labnotify/internal/api"
	"github.com/tomtom215/labnotify/internal/config"
	"github.com/tomtom215/labnotify/internal/events"
	"github.com/tomtom215/labnotify/internal/feed"
	"github.com/tomtom215/labnotify/internal/labapi"
	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/models"
	"github.com/tomtom215/labnotify/internal/realtime"
	"github.com/tomtom215/labnotify/internal/results"
	"github.com/tomtom215/labnotify/internal/supervisor"
	"github.com/tomtom215/labnotify/internal/supervisor/services"
	ws "github.com/tomtom215/labnotify/internal/websocket"
)

// app holds the wired components of one daemon run.
type app struct {
	tree *supervisor.SupervisorTree
	db   *badger.DB
}

// newApp authenticates against the backend and wires every component.
// shutdown is called when the session ends (logout or revoked access).
func newApp(ctx context.Context, cfg *config.Config, shutdown context.CancelFunc) (*app, error) {
	// ========================
	// Lab services session
	// ========================
	tokens := labapi.NewTokenSource(cfg.Backend.Token, cfg.Backend.RefreshToken)
	rest := labapi.NewClient(labapi.Config{
		BaseURL:           cfg.Backend.BaseURL,
		LoginTimeout:      cfg.Backend.LoginTimeout,
		ProfileTimeout:    cfg.Backend.ProfileTimeout,
		RequestTimeout:    cfg.Backend.RequestTimeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             cfg.Backend.Burst,
		Retries:           cfg.Backend.Retries,
	}, tokens)
	fetcher := labapi.NewCircuitBreakerClient(rest, labapi.DefaultBreakerSettings())

	userID, err := establishSession(ctx, rest, cfg.Backend)
	if err != nil {
		return nil, err
	}
	tokens.SetUserID(userID)

	// ========================
	// Result Store
	// ========================
	dbPath := cfg.Storage.Path
	if cfg.Storage.InMemory {
		dbPath = ""
	}
	db, err := results.OpenBadger(dbPath)
	if err != nil {
		return nil, err
	}
	snapshot := results.NewBadgerSnapshot(db, userID)
	store := results.NewStore(snapshot)
	logging.Info().Int("results", store.Len()).Bool("in_memory", cfg.Storage.InMemory).Msg("Result store loaded")

	// ========================
	// Local fan-out
	// ========================
	hub := ws.NewHub()

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		pcfg := events.DefaultConfig(cfg.Events.URL)
		pcfg.SubjectPrefix = cfg.Events.SubjectPrefix
		pcfg.UserID = userID
		if cfg.Events.ReconnectWait > 0 {
			pcfg.ReconnectWait = cfg.Events.ReconnectWait
		}
		publisher, err = events.NewPublisher(pcfg)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logging.Info().Str("url", cfg.Events.URL).Str("prefix", pcfg.SubjectPrefix).Msg("NATS event publishing enabled")
	}

	alerters := feed.MultiAlerter{hub}
	if publisher != nil {
		alerters = append(alerters, publisher)
	}
	feedOpts := []feed.Option{feed.WithAlerter(alerters)}
	if cfg.Alerts.Bell {
		feedOpts = append(feedOpts, feed.WithSoundPlayer(feed.NewBellPlayer(os.Stderr)))
	}
	notifications := feed.New(feedOpts...)

	// ========================
	// Realtime client
	// ========================
	client, err := realtime.NewClient(realtime.Config{
		BaseURL:   cfg.Backend.BaseURL,
		WSBaseURL: cfg.Backend.WSBaseURL,
		UserID:    userID,
		Tokens:    tokens,
		Heartbeat: cfg.Realtime.Heartbeat,
		Backoff: realtime.Backoff{
			Base:   cfg.Realtime.BackoffBase,
			Factor: cfg.Realtime.BackoffFactor,
			Max:    cfg.Realtime.BackoffMax,
		},
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		ReferenceTimeout: cfg.Realtime.ReferenceTimeout,
	}, store, notifications, fetcher)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	client.OnStateChange(hub.BroadcastConnectionStatus)
	client.SetCallbacks(
		func(r models.LabResult) {
			hub.BroadcastResult(r)
			if publisher != nil {
				publisher.ResultReady(r)
			}
		},
		func(models.Notification) {
			hub.BroadcastUnreadCount(notifications.UnreadCount())
		},
		func(r models.LabResult) {
			hub.BroadcastAcknowledged(r.ID)
			if publisher != nil {
				publisher.AcknowledgedResult(r.ID)
			}
		},
	)

	tokens.OnLogout(func() {
		logging.Error().Str("user_id", userID).Msg("Lab session ended, clearing cached results and shutting down")
		if err := snapshot.Clear(); err != nil {
			logging.Warn().Err(err).Msg("Failed to clear result snapshot")
		}
		shutdown()
	})

	// ========================
	// Supervisor tree
	// ========================
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddRealtimeService(services.NewHubService(hub))
	var realtimeOpts []services.RealtimeOption
	if cfg.Realtime.SyncOnConnect {
		realtimeOpts = append(realtimeOpts, services.WithStartupSync(client))
	}
	tree.AddRealtimeService(services.NewRealtimeService(client, realtimeOpts...))
	if publisher != nil {
		tree.AddRealtimeService(services.NewPublisherService(publisher))
	}

	if cfg.Server.Enabled {
		mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
			CORSAllowedOrigins: cfg.Server.CORSOrigins,
			CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
			CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			CORSMaxAge:         86400,
			RateLimitRequests:  cfg.Server.RateLimitReqs,
			RateLimitWindow:    cfg.Server.RateLimitWindow,
			RateLimitDisabled:  cfg.Server.RateLimitDisabled,
		})
		handler := api.NewHandler(client, hub, mw, api.HandlerConfig{
			Version:     version,
			UserID:      userID,
			SyncTimeout: cfg.Server.Timeout,
		})
		addr := cfg.Server.Addr()
		server := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(handler, mw),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, addr, 10*time.Second))
	}

	return &app{tree: tree, db: db}, nil
}

// run serves the tree until ctx is canceled and reports services that did
// not stop in time.
func (a *app) run(ctx context.Context) error {
	errCh := a.tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}

	unstopped, _ := a.tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	if err := a.db.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing result store")
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}
