// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

// Package logging provides the zerolog-based structured logger used by every
// LabNotify package.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once from main
//   - JSON output for production and console output for development
//   - Correlation ID propagation through context.Context
//   - Component loggers for the realtime, results, feed and labapi packages
//   - An slog.Handler adapter so that sutureslog events land in zerolog
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("user_id", userID).Msg("Connecting to results stream")
//	logging.Warn().Err(err).Int("attempt", n).Msg("Reconnect scheduled")
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Debug().Str("result_id", id).Msg("Result upserted")
//
// # Fields
//
// Common field names used across the codebase:
//   - component: emitting package (realtime, results, feed, labapi, api)
//   - result_id, request_id, notification_id: entity correlation keys
//   - frame_kind: classification assigned by the message router
//   - attempt, delay: reconnect state
//   - correlation_id: per-operation id from the context
//   - http_request_id: X-Request-ID of a local API request
//
// Always terminate an event chain with Msg or Send; an unterminated chain is
// never written.
package logging
