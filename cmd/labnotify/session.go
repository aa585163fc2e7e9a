// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/labnotify/internal/config"
	"github.com/tomtom215/labnotify/internal/labapi"
	"github.com/tomtom215/labnotify/internal/logging"
)

// authenticator is the part of labapi.Client used to open a session.
type authenticator interface {
	Login(ctx context.Context, username, password string) (labapi.TokenResponse, error)
	Profile(ctx context.Context) (labapi.UserProfile, error)
}

// establishSession logs in when no token is configured and resolves the
// user id from the profile when none is configured. It returns the user id
// whose results stream should be opened.
func establishSession(ctx context.Context, auth authenticator, backend config.BackendConfig) (string, error) {
	if backend.Token == "" {
		if _, err := auth.Login(ctx, backend.Username, backend.Password); err != nil {
			return "", fmt.Errorf("login as %s: %w", backend.Username, err)
		}
	}

	if backend.UserID != "" {
		return backend.UserID, nil
	}

	profile, err := auth.Profile(ctx)
	if err != nil {
		return "", err
	}
	if profile.ID == "" {
		return "", errors.New("profile has no user id")
	}
	logging.Info().
		Str("user_id", profile.ID).
		Str("username", profile.Username).
		Str("role", profile.Role).
		Msg("Session established")
	return profile.ID, nil
}
