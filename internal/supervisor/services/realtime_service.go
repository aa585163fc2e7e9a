// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/labnotify/internal/logging"
)

// StreamClient is satisfied by *realtime.Client.
type StreamClient interface {
	Start(ctx context.Context) error
	Stop()
}

// Syncer is satisfied by *realtime.Client.
type Syncer interface {
	SyncAll(ctx context.Context) (int, error)
}

// RealtimeOption configures a RealtimeService.
type RealtimeOption func(*RealtimeService)

// WithStartupSync re-syncs every known lab request over REST once the
// stream has been started, so results missed while offline show up.
func WithStartupSync(s Syncer) RealtimeOption {
	return func(r *RealtimeService) { r.syncer = s }
}

// RealtimeService runs the results stream client. The client reconnects on
// its own; the supervisor only restarts the service when Start fails.
type RealtimeService struct {
	client StreamClient
	syncer Syncer
}

// NewRealtimeService wraps client.
func NewRealtimeService(client StreamClient, opts ...RealtimeOption) *RealtimeService {
	s := &RealtimeService{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve implements suture.Service.
func (s *RealtimeService) Serve(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("realtime client start failed: %w", err)
	}

	var wg sync.WaitGroup
	if s.syncer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			merged, err := s.syncer.SyncAll(ctx)
			if err != nil {
				logging.Warn().Err(err).Str("component", "realtime").Int("merged", merged).Msg("Startup sync incomplete")
				return
			}
			logging.Info().Str("component", "realtime").Int("merged", merged).Msg("Startup sync complete")
		}()
	}

	<-ctx.Done()
	wg.Wait()
	s.client.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (s *RealtimeService) String() string {
	return "realtime-client"
}
