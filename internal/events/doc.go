// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

// Package events publishes result and notification events to NATS so other
// local tools (a ward dashboard, a pager bridge) can react to them.
//
// Subjects are "<prefix>.result_ready", "<prefix>.notification" and
// "<prefix>.acknowledged". Payloads are the JSON Event envelope; the event
// id is also sent as the Nats-Msg-Id header.
//
// Publishing is optional and never blocks the realtime path: Alert,
// ResultReady and AcknowledgedResult publish in the background, and a
// circuit breaker stops publishing for 30 seconds after five consecutive
// failures.
package events
