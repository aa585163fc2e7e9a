// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/labnotify/internal/feed"
	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
	"github.com/tomtom215/labnotify/internal/results"
)

// TokenProvider supplies the current access token. An empty token is
// allowed; the stream URL then carries no token parameter.
type TokenProvider interface {
	AccessToken() string
}

// StaticToken is a fixed TokenProvider.
type StaticToken string

// AccessToken implements TokenProvider.
func (t StaticToken) AccessToken() string { return string(t) }

// Config configures a Client.
type Config struct {
	// BaseURL is the backend base URL. WSBaseURL overrides it for the
	// results stream.
	BaseURL   string
	WSBaseURL string
	UserID    string
	Tokens    TokenProvider

	Heartbeat        time.Duration
	Backoff          Backoff
	HandshakeTimeout time.Duration
	ReferenceTimeout time.Duration

	// Dialer and Clock default to gorilla/websocket and the wall clock.
	Dialer Dialer
	Clock  Clock
}

// Client is the realtime notification client: one Connection Manager
// feeding one Message Router, which in turn updates the Result Store and
// the Notification Feed.
type Client struct {
	cfg     Config
	manager *Manager
	router  *Router
	store   *results.Store
	feed    *feed.Feed

	observerMu sync.RWMutex
	observers  []func(models.ConnectionState)
}

// NewClient creates a client. fetcher is used for reference resolution and
// REST sync and may be nil.
func NewClient(cfg Config, store *results.Store, f *feed.Feed, fetcher ResultFetcher) (*Client, error) {
	if store == nil {
		return nil, errors.New("realtime: nil result store")
	}
	if f == nil {
		return nil, errors.New("realtime: nil notification feed")
	}
	if cfg.Tokens == nil {
		cfg.Tokens = StaticToken("")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}

	c := &Client{
		cfg:   cfg,
		store: store,
		feed:  f,
	}
	c.router = NewRouter(store, f, fetcher, cfg.ReferenceTimeout)
	c.manager = NewManager(ManagerConfig{
		URL:           c.streamURL,
		Dialer:        cfg.Dialer,
		Clock:         cfg.Clock,
		Backoff:       cfg.Backoff,
		Heartbeat:     cfg.Heartbeat,
		OnFrame:       c.router.Handle,
		OnStateChange: c.notifyState,
	})
	return c, nil
}

func (c *Client) streamURL() (string, error) {
	base := c.cfg.WSBaseURL
	if base == "" {
		base = c.cfg.BaseURL
	}
	return BuildStreamURL(base, c.cfg.UserID, c.cfg.Tokens.AccessToken())
}

// Start opens the results stream. The connection is kept alive until Stop.
func (c *Client) Start(ctx context.Context) error {
	return c.manager.Start(ctx)
}

// Stop closes the stream with a normal closure and waits for in-flight
// work, including alert hooks, to finish.
func (c *Client) Stop() {
	c.manager.Stop()
	c.router.Close()
	c.feed.WaitHooks()
}

// Reconnect replaces the current socket with a fresh one.
func (c *Client) Reconnect() error {
	return c.manager.Connect()
}

// Acknowledge asks the server to acknowledge a result. The store changes
// only when the server confirms with acknowledge_success.
func (c *Client) Acknowledge(resultID string) error {
	resultID = strings.TrimSpace(resultID)
	if resultID == "" {
		return fmt.Errorf("%w: empty result id", results.ErrInvalidResult)
	}
	if err := c.manager.Send(AcknowledgeRequest{Type: TypeAcknowledgeResult, ResultID: resultID}); err != nil {
		return fmt.Errorf("send acknowledge for %s: %w", resultID, err)
	}
	metrics.RealtimeFramesSent.WithLabelValues(TypeAcknowledgeResult).Inc()
	return nil
}

// SyncRequest merges the REST view of one lab request into the store and
// returns the number of merged results.
func (c *Client) SyncRequest(ctx context.Context, requestID string) (int, error) {
	if strings.TrimSpace(requestID) == "" {
		return 0, errors.New("realtime: empty request id")
	}
	return c.router.SyncRequest(ctx, requestID)
}

// SyncAll re-syncs every lab request that has results in the store. It
// keeps going after a failed request and returns the first error.
func (c *Client) SyncAll(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	for _, r := range c.store.All() {
		if r.LabRequestID != "" {
			seen[r.LabRequestID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var firstErr error
	total := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := c.router.SyncRequest(ctx, id)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("request_id", id).Msg("Lab request sync failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	return total, firstErr
}

// SetCallbacks registers observers on the router.
func (c *Client) SetCallbacks(
	onResult func(models.LabResult),
	onNotification func(models.Notification),
	onAcknowledged func(models.LabResult),
) {
	c.router.SetCallbacks(onResult, onNotification, onAcknowledged)
}

// OnStateChange adds a connection state observer.
func (c *Client) OnStateChange(fn func(models.ConnectionState)) {
	c.observerMu.Lock()
	c.observers = append(c.observers, fn)
	c.observerMu.Unlock()
}

func (c *Client) notifyState(state models.ConnectionState) {
	c.observerMu.RLock()
	observers := c.observers
	c.observerMu.RUnlock()

	for _, fn := range observers {
		fn(state)
	}
}

// State returns the current connection state.
func (c *Client) State() models.ConnectionState { return c.manager.State() }

// IsConnected reports whether the stream is open.
func (c *Client) IsConnected() bool { return c.manager.IsConnected() }

// Store returns the Result Store.
func (c *Client) Store() *results.Store { return c.store }

// Feed returns the Notification Feed.
func (c *Client) Feed() *feed.Feed { return c.feed }
