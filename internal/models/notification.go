// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// NotificationTypeLabResultReady is the only notification type the client reacts to.
const NotificationTypeLabResultReady = "lab_result_ready"

// Notification is a user-facing entry in the Notification Feed.
// Notifications live for the lifetime of the feed; only Read ever changes.
type Notification struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Time         string    `json:"time"`
	Timestamp    time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
	Abnormal     bool      `json:"abnormal"`
	LabResultID  string    `json:"labResultId,omitempty"`
	LabRequestID string    `json:"labRequestId,omitempty"`
}

// NotificationRef is a lightweight notification frame that points at a
// result without embedding its data.
type NotificationRef struct {
	NotificationType string    `json:"notificationType"`
	EntityID         string    `json:"entityId"`
	Message          string    `json:"message"`
	CreatedAt        time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts camelCase and snake_case keys.
func (n *NotificationRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		NotificationType      string          `json:"notificationType"`
		NotificationTypeSnake string          `json:"notification_type"`
		EntityID              json.RawMessage `json:"entityId"`
		EntityIDSnake         json.RawMessage `json:"entity_id"`
		Message               string          `json:"message"`
		CreatedAt             json.RawMessage `json:"createdAt"`
		CreatedAtSnake        json.RawMessage `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.NotificationType = firstNonEmpty(raw.NotificationType, raw.NotificationTypeSnake)
	n.EntityID = ScalarString(FirstPresent(raw.EntityID, raw.EntityIDSnake))
	n.Message = raw.Message
	n.CreatedAt = time.Time{}
	if t, ok := ParseTimestamp(ScalarString(FirstPresent(raw.CreatedAt, raw.CreatedAtSnake))); ok {
		n.CreatedAt = t
	}
	return nil
}
