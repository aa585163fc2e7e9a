// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

/*
Package models defines the data structures shared by the LabNotify packages.

Key Components:

  - LabResult: a lab result as held by the Result Store, keyed by ID
  - ResultUpdate: a partially specified lab result decoded from a WebSocket
    frame, a REST response or a persisted snapshot. Pointer fields distinguish
    "absent" from "zero" so that merges only overwrite what was sent.
  - Parameter: a single named measurement inside a result
  - LabRequest: the external lab request entity (read-only here)
  - Notification / NotificationRef: user-facing notifications and the
    lightweight reference frames that point at a result
  - ConnectionState: the status badge of the realtime connection

Wire Compatibility:

The results service is not consistent about key casing: WebSocket frames use
camelCase (labRequestId, resultData) while REST payloads use snake_case
(lab_request_id, result_data). Decoders in this package accept both spellings,
and parameter values may arrive as JSON strings or numbers.
*/
package models
