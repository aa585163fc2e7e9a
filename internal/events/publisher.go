// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher is closed")

// Config configures the NATS publisher.
type Config struct {
	URL             string
	SubjectPrefix   string
	UserID          string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	PublishTimeout  time.Duration
}

// DefaultConfig returns production defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		SubjectPrefix:   "labnotify",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 1024 * 1024,
		PublishTimeout:  2 * time.Second,
	}
}

// Publisher publishes result and notification events to core NATS through
// a Watermill publisher, guarded by a circuit breaker.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[interface{}]
	cfg       Config
	now       func() time.Time

	mu       sync.RWMutex
	draining bool // no new background publishes
	closed   bool
	wg       sync.WaitGroup
}

// NewPublisher connects to NATS. The connection is retried in the
// background when the server is not reachable yet.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("events: NATS url is required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "labnotify"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}

	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	natsOpts := []natsgo.Option{
		natsgo.Name("labnotify"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Str("component", "events").Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("component", "events").Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	return newPublisher(pub, cfg), nil
}

func newPublisher(pub message.Publisher, cfg Config) *Publisher {
	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "nats-publisher",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
		},
	})

	return &Publisher{
		publisher: pub,
		breaker:   breaker,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Subject returns the full subject for a suffix.
func (p *Publisher) Subject(suffix string) string {
	return strings.TrimSuffix(p.cfg.SubjectPrefix, ".") + "." + suffix
}

// Publish sends e on the subject for its type.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	msg := message.NewMessage(e.EventID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, e.EventID)
	msg.Metadata.Set("event_type", e.Type)
	if e.UserID != "" {
		msg.Metadata.Set("user_id", e.UserID)
	}

	subject := p.Subject(e.Type)
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(subject, msg)
	})
	metrics.RecordEventPublished(subject, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("component", "events").Str("subject", subject).Msg("Event publish failed")
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// PublishResult publishes a result_ready event.
func (p *Publisher) PublishResult(ctx context.Context, r models.LabResult) error {
	return p.Publish(ctx, ResultReady(p.cfg.UserID, r, p.now()))
}

// PublishNotification publishes a notification event.
func (p *Publisher) PublishNotification(ctx context.Context, n models.Notification) error {
	return p.Publish(ctx, NotificationCreated(p.cfg.UserID, n, p.now()))
}

// PublishAcknowledged publishes an acknowledged event.
func (p *Publisher) PublishAcknowledged(ctx context.Context, resultID string) error {
	return p.Publish(ctx, Acknowledged(p.cfg.UserID, resultID, p.now()))
}

// Alert implements feed.Alerter. The publish runs in the background so a
// slow broker never delays the feed.
func (p *Publisher) Alert(n models.Notification) {
	p.goPublish(func(ctx context.Context) error { return p.PublishNotification(ctx, n) })
}

// ResultReady publishes r in the background.
func (p *Publisher) ResultReady(r models.LabResult) {
	p.goPublish(func(ctx context.Context) error { return p.PublishResult(ctx, r) })
}

// AcknowledgedResult publishes an acknowledgement in the background.
func (p *Publisher) AcknowledgedResult(resultID string) {
	p.goPublish(func(ctx context.Context) error { return p.PublishAcknowledged(ctx, resultID) })
}

func (p *Publisher) goPublish(fn func(ctx context.Context) error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.draining {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
		defer cancel()
		_ = fn(ctx)
	}()
}

// Close waits for background publishes and closes the NATS connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
