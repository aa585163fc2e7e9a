// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package realtime

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/labnotify/internal/models"
)

// Inbound and outbound frame types.
const (
	TypeLabResultReady     = "lab_result_ready"
	TypeNotification       = "notification"
	TypeAcknowledgeSuccess = "acknowledge_success"
	TypeAcknowledgeResult  = "acknowledge_result"
	TypePing               = "ping"
	TypePong               = "pong"
)

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	// FrameUnknown covers pong and every unrecognized shape; it is ignored.
	FrameUnknown FrameKind = iota
	// FrameResult carries a complete lab result.
	FrameResult
	// FrameReference points at a result by id without embedding it.
	FrameReference
	// FrameAck confirms an acknowledge_result request.
	FrameAck
)

// String returns the metric label for k.
func (k FrameKind) String() string {
	switch k {
	case FrameResult:
		return "result"
	case FrameReference:
		return "reference"
	case FrameAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Frame is a decoded inbound frame. Only the field matching Kind is set.
type Frame struct {
	Kind      FrameKind
	Type      string
	Result    models.ResultUpdate
	Reference models.NotificationRef
	AckID     string
}

// envelope holds the keys used to classify a frame.
type envelope struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data"`
	LabRequestID  json.RawMessage `json:"labRequestId"`
	ResultData    json.RawMessage `json:"resultData"`
	ResultID      json.RawMessage `json:"resultId"`
	ResultIDSnake json.RawMessage `json:"result_id"`
}

// AcknowledgeRequest is the outbound acknowledge_result frame.
type AcknowledgeRequest struct {
	Type     string `json:"type"`
	ResultID string `json:"resultId"`
}

// Decode classifies a text frame. Variants are tried in priority order:
//
//  1. {"type":"lab_result_ready","data":{...}}
//  2. {"labRequestId":...,"resultData":{...}} without a wrapper
//  3. {"type":"notification","data":{"notificationType":"lab_result_ready",...}}
//  4. {"type":"acknowledge_success","resultId":...}
//  5. anything else is FrameUnknown
//
// An error is returned only for input that is not a JSON object or whose
// payload cannot be decoded.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	frame := Frame{Type: env.Type}
	payload := models.FirstPresent(env.Data)

	switch {
	case env.Type == TypeLabResultReady && payload != nil:
		if err := json.Unmarshal(payload, &frame.Result); err != nil {
			return Frame{}, fmt.Errorf("decode %s payload: %w", TypeLabResultReady, err)
		}
		frame.Kind = FrameResult

	case models.FirstPresent(env.LabRequestID) != nil && models.FirstPresent(env.ResultData) != nil:
		if err := json.Unmarshal(data, &frame.Result); err != nil {
			return Frame{}, fmt.Errorf("decode direct result payload: %w", err)
		}
		frame.Kind = FrameResult

	case env.Type == TypeNotification && payload != nil:
		var ref models.NotificationRef
		if err := json.Unmarshal(payload, &ref); err != nil {
			return Frame{}, fmt.Errorf("decode %s payload: %w", TypeNotification, err)
		}
		if ref.NotificationType == models.NotificationTypeLabResultReady {
			frame.Kind = FrameReference
			frame.Reference = ref
		}

	case env.Type == TypeAcknowledgeSuccess:
		frame.AckID = models.ScalarString(models.FirstPresent(env.ResultID, env.ResultIDSnake))
		if frame.AckID != "" {
			frame.Kind = FrameAck
		}
	}

	return frame, nil
}
