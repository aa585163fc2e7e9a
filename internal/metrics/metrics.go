// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection status values for RealtimeConnectionStatus.
const (
	StatusValueDisconnected = 0
	StatusValueConnecting   = 1
	StatusValueConnected    = 2
)

var (
	// Realtime connection metrics
	RealtimeConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labnotify_realtime_connection_status",
			Help: "Realtime connection status (0=disconnected, 1=connecting, 2=connected)",
		},
	)

	RealtimeReconnectsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labnotify_realtime_reconnects_scheduled_total",
			Help: "Total number of reconnect attempts scheduled after an unclean close",
		},
	)

	RealtimeBackoffDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labnotify_realtime_backoff_delay_seconds",
			Help:    "Scheduled reconnect delay in seconds",
			Buckets: []float64{1, 1.5, 2.25, 3.375, 5.0625, 7.6, 11.4, 17.1, 25.6, 30},
		},
	)

	RealtimeCloses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_realtime_closes_total",
			Help: "Total number of socket closes by close code",
		},
		[]string{"code"},
	)

	RealtimeFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_realtime_frames_received_total",
			Help: "Total number of inbound frames by router classification",
		},
		[]string{"kind"}, // result, reference, ack, unknown, invalid
	)

	RealtimeFramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_realtime_frames_sent_total",
			Help: "Total number of outbound frames by type",
		},
		[]string{"type"}, // ping, acknowledge_result
	)

	// Result store metrics
	ResultStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labnotify_result_store_entries",
			Help: "Current number of lab results in the result store",
		},
	)

	ResultUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_result_upserts_total",
			Help: "Total number of result upserts by outcome",
		},
		[]string{"outcome"}, // inserted, merged, rejected
	)

	SnapshotErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_snapshot_errors_total",
			Help: "Total number of result snapshot load/save failures",
		},
		[]string{"operation"}, // load, save
	)

	// Notification feed metrics
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"abnormal"},
	)

	NotificationsUnread = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labnotify_notifications_unread",
			Help: "Current number of unread notifications",
		},
	)

	// REST client metrics
	LabAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_labapi_requests_total",
			Help: "Total number of REST requests to the lab services",
		},
		[]string{"endpoint", "status_code"},
	)

	LabAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labnotify_labapi_request_duration_seconds",
			Help:    "REST request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	LabAPITokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_labapi_token_refreshes_total",
			Help: "Total number of access token refresh attempts",
		},
		[]string{"result"}, // success, failure
	)

	// Local HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_api_requests_total",
			Help: "Total number of local API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labnotify_api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	// Local WebSocket hub metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labnotify_websocket_connections",
			Help: "Current number of local WebSocket subscribers",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labnotify_websocket_messages_sent_total",
			Help: "Total number of messages broadcast to local subscribers",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_websocket_errors_total",
			Help: "Total number of local WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Event publishing metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_events_published_total",
			Help: "Total number of NATS events published",
		},
		[]string{"subject", "result"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labnotify_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labnotify_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labnotify_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// SetConnectionStatus records the realtime connection status.
func SetConnectionStatus(status string) {
	switch status {
	case "connected":
		RealtimeConnectionStatus.Set(StatusValueConnected)
	case "connecting":
		RealtimeConnectionStatus.Set(StatusValueConnecting)
	default:
		RealtimeConnectionStatus.Set(StatusValueDisconnected)
	}
}

// RecordReconnectScheduled records one scheduled reconnect and its delay.
func RecordReconnectScheduled(delay time.Duration) {
	RealtimeReconnectsScheduled.Inc()
	RealtimeBackoffDelay.Observe(delay.Seconds())
}

// RecordClose records a socket close by code.
func RecordClose(code int) {
	RealtimeCloses.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordLabAPIRequest records a REST request outcome. statusCode is 0 for
// transport failures.
func RecordLabAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	LabAPIRequests.WithLabelValues(endpoint, code).Inc()
	LabAPIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIRequest records a local API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNotification records a created notification.
func RecordNotification(abnormal bool) {
	NotificationsCreated.WithLabelValues(strconv.FormatBool(abnormal)).Inc()
}

// RecordEventPublished records a NATS publish attempt.
func RecordEventPublished(subject string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(subject, result).Inc()
}
