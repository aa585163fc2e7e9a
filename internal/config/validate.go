// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/labnotify/internal/validation"
)

// Validate checks struct tags, then the cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	var errs []error

	if err := checkScheme("backend.base_url", c.Backend.BaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.Backend.WSBaseURL != "" {
		if err := checkScheme("backend.ws_base_url", c.Backend.WSBaseURL, "ws", "wss", "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Backend.Token == "" && (c.Backend.Username == "" || c.Backend.Password == "") {
		errs = append(errs, errors.New("backend: either token or username and password are required"))
	}

	if c.Realtime.BackoffMax < c.Realtime.BackoffBase {
		errs = append(errs, fmt.Errorf("realtime: backoff_max (%s) must be >= backoff_base (%s)",
			c.Realtime.BackoffMax, c.Realtime.BackoffBase))
	}

	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage: path is required unless in_memory is set"))
	}

	if c.Server.RateLimitReqs > 0 && !c.Server.RateLimitDisabled && c.Server.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("server: rate_limit_window must be positive"))
	}

	if c.Events.Enabled {
		if err := checkScheme("events.url", c.Events.URL, "nats", "tls"); err != nil {
			errs = append(errs, err)
		}
		if strings.TrimSpace(c.Events.SubjectPrefix) == "" {
			errs = append(errs, errors.New("events: subject_prefix is required"))
		}
	}

	return errors.Join(errs...)
}

func checkScheme(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme %q not one of %s", field, u.Scheme, strings.Join(schemes, ", "))
}
