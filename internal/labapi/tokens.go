// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package labapi

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/labnotify/internal/logging"
)

// expirySkew refreshes tokens slightly before they expire.
const expirySkew = 10 * time.Second

// TokenSource holds the session credentials shared by the REST client and
// the realtime stream.
type TokenSource struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	userID       string

	logoutMu sync.Mutex
	onLogout []func()
}

// NewTokenSource creates a token source. Both tokens may be empty.
func NewTokenSource(accessToken, refreshToken string) *TokenSource {
	return &TokenSource{accessToken: accessToken, refreshToken: refreshToken}
}

// AccessToken returns the current access token.
func (s *TokenSource) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *TokenSource) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// SetTokens replaces the tokens. An empty refresh token keeps the old one.
func (s *TokenSource) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
}

// UserID returns the user id resolved from the profile endpoint.
func (s *TokenSource) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetUserID records the signed-in user id.
func (s *TokenSource) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

// OnLogout registers fn to run whenever credentials are cleared.
func (s *TokenSource) OnLogout(fn func()) {
	s.logoutMu.Lock()
	defer s.logoutMu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Clear drops all credentials and runs the logout callbacks.
func (s *TokenSource) Clear() {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.userID = ""
	s.mu.Unlock()

	logging.Warn().Str("component", "labapi").Msg("Credentials cleared, session ended")

	s.logoutMu.Lock()
	callbacks := append([]func(){}, s.onLogout...)
	s.logoutMu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Expired reports whether the access token is a JWT whose exp claim has
// passed at now. Opaque tokens and tokens without exp never expire here;
// the server's 401 decides for them.
func (s *TokenSource) Expired(now time.Time) bool {
	token := s.AccessToken()
	if token == "" {
		return false
	}
	exp, ok := tokenExpiry(token)
	if !ok {
		return false
	}
	return !now.Add(expirySkew).Before(exp)
}

// tokenExpiry reads the exp claim without verifying the signature. The
// client cannot verify it and only uses it to schedule a refresh.
func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
