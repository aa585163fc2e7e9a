// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Backend  BackendConfig  `koanf:"backend"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Storage  StorageConfig  `koanf:"storage"`
	Server   ServerConfig   `koanf:"server"`
	Alerts   AlertsConfig   `koanf:"alerts"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// BackendConfig configures the lab backend: REST services and the results
// stream.
type BackendConfig struct {
	// BaseURL is the REST base URL, e.g. https://lab.example.org/api.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// WSBaseURL overrides BaseURL for the results stream. Derived from
	// BaseURL (http->ws, https->wss) when empty.
	WSBaseURL string `koanf:"ws_base_url" validate:"omitempty,url"`

	// UserID selects the stream. Resolved from the profile after login
	// when empty.
	UserID string `koanf:"user_id"`

	// Token is a pre-issued access token. Username and Password are used
	// to log in when no token is configured.
	Token        string `koanf:"token"`
	RefreshToken string `koanf:"refresh_token"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`

	LoginTimeout   time.Duration `koanf:"login_timeout" validate:"gt=0"`
	ProfileTimeout time.Duration `koanf:"profile_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// RequestsPerSecond limits REST calls; zero disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`
	Retries           int     `koanf:"retries" validate:"gte=0,lte=10"`
}

// RealtimeConfig configures the results stream.
type RealtimeConfig struct {
	Heartbeat        time.Duration `koanf:"heartbeat" validate:"gt=0"`
	BackoffBase      time.Duration `koanf:"backoff_base" validate:"gt=0"`
	BackoffFactor    float64       `koanf:"backoff_factor" validate:"gte=1"`
	BackoffMax       time.Duration `koanf:"backoff_max" validate:"gt=0"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gt=0"`

	// ReferenceTimeout bounds the REST fetch behind a notification
	// reference frame.
	ReferenceTimeout time.Duration `koanf:"reference_timeout" validate:"gt=0"`

	// SyncOnConnect re-syncs known lab requests over REST at startup.
	SyncOnConnect bool `koanf:"sync_on_connect"`
}

// StorageConfig configures the result snapshot.
type StorageConfig struct {
	// Path is the BadgerDB directory.
	Path string `koanf:"path"`

	// InMemory keeps the snapshot in memory only.
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// AlertsConfig configures local alert hooks.
type AlertsConfig struct {
	// Bell writes a terminal bell to stderr for each new notification.
	Bell bool `koanf:"bell"`
}

// EventsConfig configures the optional NATS publisher.
type EventsConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	SubjectPrefix string        `koanf:"subject_prefix"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	Caller bool `koanf:"caller"`
}
