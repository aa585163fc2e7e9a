// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package models

import "time"

// ConnectionStatus is the value shown on the connection badge.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// ConnectionState is a snapshot of the realtime connection.
type ConnectionState struct {
	Status            ConnectionStatus `json:"status"`
	ReconnectAttempts int              `json:"reconnectAttempts"`
	ConnectedAt       *time.Time       `json:"connectedAt,omitempty"`
	NextRetryAt       *time.Time       `json:"nextRetryAt,omitempty"`
}
