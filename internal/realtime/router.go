// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/labnotify/internal/feed"
	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
	"github.com/tomtom215/labnotify/internal/results"
)

// DefaultReferenceTimeout bounds the fetch that resolves a notification
// reference into a full result.
const DefaultReferenceTimeout = 5 * time.Second

// ResultFetcher loads results from the lab-result service.
type ResultFetcher interface {
	GetResult(ctx context.Context, id string, includeDetails bool) (models.ResultUpdate, error)
	ResultsByRequest(ctx context.Context, requestID string) ([]models.ResultUpdate, error)
}

// Router classifies inbound frames and dispatches them to the Result Store
// and the Notification Feed. Only the router, REST sync completions and user
// actions mutate the store.
type Router struct {
	store            *results.Store
	feed             *feed.Feed
	fetcher          ResultFetcher
	referenceTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	callbackMu     sync.RWMutex
	onResult       func(models.LabResult)
	onNotification func(models.Notification)
	onAcknowledged func(models.LabResult)
}

// NewRouter creates a router. fetcher may be nil, in which case notification
// references are turned into notifications directly.
func NewRouter(store *results.Store, f *feed.Feed, fetcher ResultFetcher, referenceTimeout time.Duration) *Router {
	if referenceTimeout <= 0 {
		referenceTimeout = DefaultReferenceTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		store:            store,
		feed:             f,
		fetcher:          fetcher,
		referenceTimeout: referenceTimeout,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// SetCallbacks registers observers for stored results, created
// notifications and acknowledged results. Any of them may be nil.
func (r *Router) SetCallbacks(
	onResult func(models.LabResult),
	onNotification func(models.Notification),
	onAcknowledged func(models.LabResult),
) {
	r.callbackMu.Lock()
	defer r.callbackMu.Unlock()

	r.onResult = onResult
	r.onNotification = onNotification
	r.onAcknowledged = onAcknowledged
}

// Handle processes one inbound frame. Malformed frames are logged and
// dropped; they never affect the connection.
func (r *Router) Handle(data []byte) {
	frame, err := Decode(data)
	if err != nil {
		metrics.RealtimeFramesReceived.WithLabelValues("invalid").Inc()
		logging.Warn().Err(err).Str("component", "realtime").Int("bytes", len(data)).Msg("Dropping malformed frame")
		return
	}
	metrics.RealtimeFramesReceived.WithLabelValues(frame.Kind.String()).Inc()

	switch frame.Kind {
	case FrameResult:
		r.ingest(frame.Result)
	case FrameReference:
		r.resolveReference(frame.Reference)
	case FrameAck:
		r.acknowledge(frame.AckID)
	default:
		if frame.Type != TypePong {
			logging.Debug().Str("component", "realtime").Str("type", frame.Type).Msg("Ignoring unrecognized frame")
		}
	}
}

// ingest upserts a complete result and derives its notification.
func (r *Router) ingest(u models.ResultUpdate) (models.LabResult, bool) {
	stored, err := r.store.Upsert(u)
	if err != nil {
		return models.LabResult{}, false
	}
	n := r.feed.FromResult(stored)

	r.callbackMu.RLock()
	onResult, onNotification := r.onResult, r.onNotification
	r.callbackMu.RUnlock()

	if onResult != nil {
		onResult(stored)
	}
	if onNotification != nil {
		onNotification(n)
	}
	return stored, true
}

// resolveReference fetches the referenced result in the background. When the
// fetch fails the notification is built from the reference itself.
func (r *Router) resolveReference(ref models.NotificationRef) {
	if r.fetcher == nil || ref.EntityID == "" {
		r.notifyFromReference(ref)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(r.ctx, r.referenceTimeout)
		defer cancel()
		ctx = logging.ContextWithNewCorrelationID(ctx)

		u, err := r.fetcher.GetResult(ctx, ref.EntityID, true)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("result_id", ref.EntityID).Msg("Could not fetch referenced result")
			r.notifyFromReference(ref)
			return
		}
		if u.ResolveID() == "" {
			u.ID = ref.EntityID
		}
		if _, ok := r.ingest(u); !ok {
			r.notifyFromReference(ref)
		}
	}()
}

func (r *Router) notifyFromReference(ref models.NotificationRef) {
	n := r.feed.FromReference(ref)

	r.callbackMu.RLock()
	onNotification := r.onNotification
	r.callbackMu.RUnlock()

	if onNotification != nil {
		onNotification(n)
	}
}

func (r *Router) acknowledge(id string) {
	stored, ok := r.store.MarkAcknowledged(id)
	if !ok {
		return
	}

	r.callbackMu.RLock()
	onAcknowledged := r.onAcknowledged
	r.callbackMu.RUnlock()

	if onAcknowledged != nil {
		onAcknowledged(stored)
	}
}

// SyncRequest fetches every result of a lab request over REST and merges
// them into the store. Merged results do not create notifications.
func (r *Router) SyncRequest(ctx context.Context, requestID string) (int, error) {
	if r.fetcher == nil {
		return 0, nil
	}
	updates, err := r.fetcher.ResultsByRequest(ctx, requestID)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, u := range updates {
		if u.LabRequestID == nil {
			id := requestID
			u.LabRequestID = &id
		}
		if _, err := r.store.Upsert(u); err == nil {
			merged++
		}
	}
	logging.Ctx(ctx).Debug().Str("request_id", requestID).Int("merged", merged).Int("fetched", len(updates)).Msg("Synced lab request results")
	return merged, nil
}

// Close cancels in-flight reference fetches and waits for them.
func (r *Router) Close() {
	r.cancel()
	r.wg.Wait()
}
