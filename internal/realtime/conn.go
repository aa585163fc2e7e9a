// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/labnotify/internal/logging"
)

// ErrNoUserID is returned when no user identity is available to build the
// results stream URL.
var ErrNoUserID = errors.New("realtime: no user id")

// Conn is the subset of *websocket.Conn used by the Manager.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens a WebSocket connection.
type Dialer interface {
	Dial(ctx context.Context, target string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, target string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout:  timeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close handshake response body")
		}
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// BuildStreamURL returns ws(s)://<host>/ws/lab-results/<userID>?token=<token>.
// The ws/wss scheme follows the http/https scheme of base; ws and wss bases
// are used as is. The token query parameter is omitted when token is empty.
func BuildStreamURL(base, userID, token string) (string, error) {
	if userID == "" {
		return "", ErrNoUserID
	}

	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse stream base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("stream base url %q has no host", base)
	}

	prefix := strings.TrimRight(u.Path, "/")
	u.Path = prefix + "/ws/lab-results/" + userID
	u.RawPath = prefix + "/ws/lab-results/" + url.PathEscape(userID)
	u.RawQuery = ""
	u.Fragment = ""
	if token != "" {
		u.RawQuery = url.Values{"token": []string{token}}.Encode()
	}
	return u.String(), nil
}

// closeCode extracts the close code from a read error. Errors that are not
// close frames count as an abnormal closure (1006).
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
