// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package labapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrUnauthorized is returned when the services reject the credentials
	// even after a token refresh.
	ErrUnauthorized = errors.New("lab api: unauthorized")

	// ErrForbidden is returned on 403. Credentials have been cleared and the
	// logout callbacks have run by the time the caller sees it.
	ErrForbidden = errors.New("lab api: forbidden")

	// ErrNoCredentials is returned when a login or refresh is attempted
	// without the required credentials.
	ErrNoCredentials = errors.New("lab api: no credentials")
)

// APIError is a non-2xx response from the lab services.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lab api: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps authentication statuses onto their sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	default:
		return nil
	}
}

// newAPIError builds an APIError from a response body. The message is taken
// from the first of detail, message or error that is present; otherwise a
// generic message for the status is used.
func newAPIError(statusCode int, body []byte) *APIError {
	return &APIError{StatusCode: statusCode, Message: errorMessage(statusCode, body)}
}

func errorMessage(statusCode int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		for _, raw := range []json.RawMessage{payload.Detail, payload.Message, payload.Error} {
			if msg := readableMessage(raw); msg != "" {
				return msg
			}
		}
	}
	return genericMessage(statusCode)
}

// readableMessage renders a string message, or the msg fields of a
// validation error list such as [{"loc":[...],"msg":"field required"}].
func readableMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func genericMessage(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized:
		return "Your session has expired. Please log in again."
	case statusCode == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case statusCode == http.StatusNotFound:
		return "The requested resource was not found."
	case statusCode >= 500:
		return "The lab service is temporarily unavailable. Please try again later."
	default:
		return "Request failed. Please try again."
	}
}
