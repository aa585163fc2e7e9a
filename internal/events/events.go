// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/labnotify/internal/models"
)

// Subject suffixes. The full subject is "<prefix>.<suffix>".
const (
	SubjectResultReady  = "result_ready"
	SubjectNotification = "notification"
	SubjectAcknowledged = "acknowledged"
)

// Event is the envelope published for every subject.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Result       *models.LabResult    `json:"result,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	ResultID     string               `json:"result_id,omitempty"`
}

func newEvent(eventType, userID string, now time.Time) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: now.UTC(),
	}
}

// ResultReady builds a result_ready event.
func ResultReady(userID string, r models.LabResult, now time.Time) Event {
	e := newEvent(SubjectResultReady, userID, now)
	e.Result = &r
	return e
}

// NotificationCreated builds a notification event.
func NotificationCreated(userID string, n models.Notification, now time.Time) Event {
	e := newEvent(SubjectNotification, userID, now)
	e.Notification = &n
	return e
}

// Acknowledged builds an acknowledged event.
func Acknowledged(userID, resultID string, now time.Time) Event {
	e := newEvent(SubjectAcknowledged, userID, now)
	e.ResultID = resultID
	return e
}
