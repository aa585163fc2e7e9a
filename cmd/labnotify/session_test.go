// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/tomtom215/labnotify/internal/config"
	"github.com/tomtom215/labnotify/internal/labapi"
	"github.com/tomtom215/labnotify/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type fakeAuth struct {
	loginErr   error
	profile    labapi.UserProfile
	profileErr error

	logins   []string
	profiles int
}

func (f *fakeAuth) Login(_ context.Context, username, _ string) (labapi.TokenResponse, error) {
	f.logins = append(f.logins, username)
	if f.loginErr != nil {
		return labapi.TokenResponse{}, f.loginErr
	}
	return labapi.TokenResponse{}, nil
}

func (f *fakeAuth) Profile(context.Context) (labapi.UserProfile, error) {
	f.profiles++
	return f.profile, f.profileErr
}

func TestEstablishSession(t *testing.T) {
	denied := errors.New("invalid credentials")

	tests := []struct {
		name         string
		backend      config.BackendConfig
		auth         *fakeAuth
		wantUser     string
		wantErr      bool
		wantLogins   int
		wantProfiles int
	}{
		{
			name:     "token and user id configured",
			backend:  config.BackendConfig{Token: "t", UserID: "u7"},
			auth:     &fakeAuth{},
			wantUser: "u7",
		},
		{
			name:         "token without user id reads profile",
			backend:      config.BackendConfig{Token: "t"},
			auth:         &fakeAuth{profile: labapi.UserProfile{ID: "42", Username: "dr.lee"}},
			wantUser:     "42",
			wantProfiles: 1,
		},
		{
			name:         "password login then profile",
			backend:      config.BackendConfig{Username: "dr.lee", Password: "pw"},
			auth:         &fakeAuth{profile: labapi.UserProfile{ID: "42"}},
			wantUser:     "42",
			wantLogins:   1,
			wantProfiles: 1,
		},
		{
			name:       "login failure",
			backend:    config.BackendConfig{Username: "dr.lee", Password: "bad"},
			auth:       &fakeAuth{loginErr: denied},
			wantErr:    true,
			wantLogins: 1,
		},
		{
			name:         "profile failure",
			backend:      config.BackendConfig{Token: "t"},
			auth:         &fakeAuth{profileErr: errors.New("unauthorized")},
			wantErr:      true,
			wantProfiles: 1,
		},
		{
			name:         "profile without id",
			backend:      config.BackendConfig{Token: "t"},
			auth:         &fakeAuth{profile: labapi.UserProfile{Username: "dr.lee"}},
			wantErr:      true,
			wantProfiles: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := establishSession(context.Background(), tt.auth, tt.backend)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if user != tt.wantUser {
				t.Errorf("user = %q, want %q", user, tt.wantUser)
			}
			if len(tt.auth.logins) != tt.wantLogins {
				t.Errorf("logins = %d, want %d", len(tt.auth.logins), tt.wantLogins)
			}
			if tt.auth.profiles != tt.wantProfiles {
				t.Errorf("profile calls = %d, want %d", tt.auth.profiles, tt.wantProfiles)
			}
		})
	}
}

func TestEstablishSession_WrapsLoginError(t *testing.T) {
	denied := errors.New("invalid credentials")
	auth := &fakeAuth{loginErr: denied}

	_, err := establishSession(context.Background(), auth, config.BackendConfig{Username: "dr.lee"})
	if !errors.Is(err, denied) {
		t.Errorf("error = %v, want wrapped %v", err, denied)
	}
}
