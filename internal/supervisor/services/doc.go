// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

// Package services adapts LabNotify components to suture.Service.
//
// Each wrapper depends on a small interface rather than the concrete
// package, so tests use fakes and the supervisor package does not import
// realtime, websocket or events.
package services
