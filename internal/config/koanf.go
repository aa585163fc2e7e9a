// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/labnotify/config.yaml",
	"/etc/labnotify/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the defaults, overridden by the config file and
// then by environment variables.
func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			LoginTimeout:      5 * time.Second,
			ProfileTimeout:    3 * time.Second,
			RequestTimeout:    10 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
			Retries:           2,
		},
		Realtime: RealtimeConfig{
			Heartbeat:        20 * time.Second,
			BackoffBase:      time.Second,
			BackoffFactor:    1.5,
			BackoffMax:       30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			ReferenceTimeout: 10 * time.Second,
			SyncOnConnect:    true,
		},
		Storage: StorageConfig{
			Path: "/data/labnotify",
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            8787,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Alerts: AlertsConfig{
			Bell: false,
		},
		Events: EventsConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "labnotify",
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf layers defaults, config file and environment with koanf.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// LAB_API_URL -> backend.base_url, HTTP_PORT -> server.port, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Backend
	"lab_api_url":             "backend.base_url",
	"lab_ws_url":              "backend.ws_base_url",
	"lab_user_id":             "backend.user_id",
	"lab_token":               "backend.token",
	"lab_refresh_token":       "backend.refresh_token",
	"lab_username":            "backend.username",
	"lab_password":            "backend.password",
	"lab_login_timeout":       "backend.login_timeout",
	"lab_profile_timeout":     "backend.profile_timeout",
	"lab_request_timeout":     "backend.request_timeout",
	"lab_requests_per_second": "backend.requests_per_second",
	"lab_retries":             "backend.retries",

	// Realtime
	"realtime_heartbeat":         "realtime.heartbeat",
	"realtime_backoff_base":      "realtime.backoff_base",
	"realtime_backoff_factor":    "realtime.backoff_factor",
	"realtime_backoff_max":       "realtime.backoff_max",
	"realtime_handshake_timeout": "realtime.handshake_timeout",
	"realtime_reference_timeout": "realtime.reference_timeout",
	"realtime_sync_on_connect":   "realtime.sync_on_connect",

	// Storage
	"storage_path":      "storage.path",
	"storage_in_memory": "storage.in_memory",

	// Server
	"http_enabled":        "server.enabled",
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	// Alerts
	"alert_bell": "alerts.bell",

	// Events
	"nats_enabled":        "events.enabled",
	"nats_url":            "events.url",
	"nats_subject_prefix": "events.subject_prefix",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
