// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/labnotify/internal/feed"
	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/models"
	"github.com/tomtom215/labnotify/internal/realtime"
	"github.com/tomtom215/labnotify/internal/results"
	"github.com/tomtom215/labnotify/internal/validation"
)

// LabClient is the part of realtime.Client the API serves.
type LabClient interface {
	State() models.ConnectionState
	Reconnect() error
	Acknowledge(resultID string) error
	SyncRequest(ctx context.Context, requestID string) (int, error)
	SyncAll(ctx context.Context) (int, error)
	Store() *results.Store
	Feed() *feed.Feed
}

// Broadcaster is the local subscriber hub.
type Broadcaster interface {
	Subscribe(conn *websocket.Conn) bool
	GetClientCount() int
	BroadcastUnreadCount(unread int)
}

// HandlerConfig carries static values reported by /status.
type HandlerConfig struct {
	Version     string
	UserID      string
	SyncTimeout time.Duration
}

// Handler serves the local API.
type Handler struct {
	client    LabClient
	hub       Broadcaster
	mw        *ChiMiddleware
	cfg       HandlerConfig
	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewHandler creates a handler. hub may be nil, in which case /ws answers
// 503.
func NewHandler(client LabClient, hub Broadcaster, mw *ChiMiddleware, cfg HandlerConfig) *Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 30 * time.Second
	}
	h := &Handler{
		client:    client,
		hub:       hub,
		mw:        mw,
		cfg:       cfg,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
	return h
}

// ========================================
// Health and Status
// ========================================

// Health reports liveness. The service is "degraded" while the realtime
// stream is down; cached results are still served.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.client.State()
	status := "healthy"
	if state.Status != models.StatusConnected {
		status = "degraded"
	}
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":     status,
		"connection": state.Status,
		"uptime":     time.Since(h.startTime).Seconds(),
	})
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version     string                 `json:"version,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Connection  models.ConnectionState `json:"connection"`
	Results     int                    `json:"results"`
	Unread      int                    `json:"unread"`
	Subscribers int                    `json:"subscribers"`
	Uptime      float64                `json:"uptime_seconds"`
}

// Status reports the connection state and local counters.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:    h.cfg.Version,
		UserID:     h.cfg.UserID,
		Connection: h.client.State(),
		Results:    h.client.Store().Len(),
		Unread:     h.client.Feed().UnreadCount(),
		Uptime:     time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		resp.Subscribers = h.hub.GetClientCount()
	}
	NewResponseWriter(w, r).Success(resp)
}

// Reconnect replaces the realtime connection.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.client.Reconnect(); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Manual reconnect failed")
		rw.ServiceUnavailable("Reconnect failed: " + err.Error())
		return
	}
	rw.Accepted(h.client.State())
}

// ========================================
// Results
// ========================================

// ListResultsQuery holds the GET /results query parameters.
type ListResultsQuery struct {
	RequestID string `validate:"omitempty,max=64"`
	Limit     int    `validate:"min=0,max=1000"`
}

// ListResults returns results newest first, optionally for one lab request.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	q := ListResultsQuery{RequestID: strings.TrimSpace(r.URL.Query().Get("request_id"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		q.Limit = limit
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields())
		return
	}

	var list []models.LabResult
	if q.RequestID != "" {
		list = h.client.Store().FilterByRequest(q.RequestID)
	} else {
		list = h.client.Store().All()
	}

	total := len(list)
	if q.Limit > 0 && total > q.Limit {
		list = list[:q.Limit]
	}
	rw.SuccessWithPagination(list, &PaginationMeta{
		Total:   int64(total),
		Count:   len(list),
		Limit:   q.Limit,
		HasMore: len(list) < total,
	})
}

// GetResult returns one result by id.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	result, ok := h.client.Store().Get(id)
	if !ok {
		rw.NotFound("Result not found: " + id)
		return
	}
	rw.Success(result)
}

// AcknowledgeResult sends an acknowledgement over the realtime stream. The
// result is marked acknowledged once the server confirms, so the response
// is 202.
func (h *Handler) AcknowledgeResult(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	if _, ok := h.client.Store().Get(id); !ok {
		rw.NotFound("Result not found: " + id)
		return
	}

	err := h.client.Acknowledge(id)
	switch {
	case err == nil:
		rw.Accepted(map[string]string{"result_id": id, "status": "pending"})
	case errors.Is(err, realtime.ErrNotConnected):
		rw.Error(http.StatusServiceUnavailable, ErrCodeNotConnected, "Realtime connection is not open")
	case errors.Is(err, results.ErrInvalidResult):
		rw.BadRequest(err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("result_id", id).Msg("Acknowledge failed")
		rw.InternalError("Acknowledge failed")
	}
}

// Sync merges the REST view of one lab request, or of every known request
// when request_id is omitted.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.SyncTimeout)
	defer cancel()

	requestID := strings.TrimSpace(r.URL.Query().Get("request_id"))
	var (
		merged int
		err    error
	)
	if requestID != "" {
		merged, err = h.client.SyncRequest(ctx, requestID)
	} else {
		merged, err = h.client.SyncAll(ctx)
	}
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("request_id", requestID).Msg("Sync failed")
		rw.ExternalServiceError("lab backend")
		return
	}
	rw.Success(map[string]interface{}{"merged": merged, "results": h.client.Store().Len()})
}

// ========================================
// Notifications
// ========================================

// NotificationsResponse is the body of GET /notifications.
type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// ListNotifications returns the feed newest first. unread=true filters out
// read notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	f := h.client.Feed()
	all := f.All()

	if onlyUnread, _ := strconv.ParseBool(r.URL.Query().Get("unread")); onlyUnread {
		filtered := make([]models.Notification, 0, len(all))
		for _, n := range all {
			if !n.Read {
				filtered = append(filtered, n)
			}
		}
		all = filtered
	}

	NewResponseWriter(w, r).Success(NotificationsResponse{
		Notifications: all,
		Unread:        f.UnreadCount(),
	})
}

// MarkNotificationRead marks one notification read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	f := h.client.Feed()
	if !f.MarkRead(id) {
		rw.NotFound("Notification not found: " + id)
		return
	}
	unread := f.UnreadCount()
	h.broadcastUnread(unread)
	rw.Success(map[string]int{"unread": unread})
}

// MarkAllNotificationsRead marks every notification read.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	f := h.client.Feed()
	marked := f.MarkAllRead()
	unread := f.UnreadCount()
	if marked > 0 {
		h.broadcastUnread(unread)
	}
	NewResponseWriter(w, r).Success(map[string]int{"marked": marked, "unread": unread})
}

func (h *Handler) broadcastUnread(unread int) {
	if h.hub != nil {
		h.hub.BroadcastUnreadCount(unread)
	}
}

// ========================================
// WebSocket
// ========================================

// WebSocket upgrades the request and subscribes it to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	h.hub.Subscribe(conn)
}

// checkWebSocketOrigin accepts non-browser subscribers, which send no
// Origin, and browsers on a configured CORS origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.mw.AllowsOrigin(origin) {
		return true
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and bounds the length of a
// client-supplied value before logging it.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
