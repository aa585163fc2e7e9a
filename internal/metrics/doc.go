// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package metrics provides Prometheus instrumentation for LabNotify.

All collectors are registered with the default registry through promauto and
exposed by the local API at /metrics.

# Available Metrics

Realtime connection:
  - labnotify_realtime_connection_status (gauge): 0=disconnected, 1=connecting, 2=connected
  - labnotify_realtime_reconnects_scheduled_total (counter)
  - labnotify_realtime_backoff_delay_seconds (histogram)
  - labnotify_realtime_closes_total (counter) labels: code
  - labnotify_realtime_frames_received_total (counter) labels: kind
  - labnotify_realtime_frames_sent_total (counter) labels: type

Result store and feed:
  - labnotify_result_store_entries (gauge)
  - labnotify_result_upserts_total (counter) labels: outcome
  - labnotify_snapshot_errors_total (counter) labels: operation
  - labnotify_notifications_created_total (counter) labels: abnormal
  - labnotify_notifications_unread (gauge)

REST client:
  - labnotify_labapi_requests_total (counter) labels: endpoint, status_code
  - labnotify_labapi_request_duration_seconds (histogram) labels: endpoint
  - labnotify_labapi_token_refreshes_total (counter) labels: result
  - labnotify_circuit_breaker_* (state, requests, consecutive failures, transitions)

Local surface:
  - labnotify_api_requests_total, labnotify_api_request_duration_seconds
  - labnotify_websocket_connections, labnotify_websocket_messages_sent_total,
    labnotify_websocket_errors_total
  - labnotify_events_published_total labels: subject, result
*/
package metrics
