// LabNotify - Real-Time Lab Result Notification Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/labnotify

package labapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/labnotify/internal/logging"
	"github.com/tomtom215/labnotify/internal/metrics"
	"github.com/tomtom215/labnotify/internal/models"
)

// Default timeouts.
const (
	DefaultLoginTimeout   = 5 * time.Second
	DefaultProfileTimeout = 3 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Auth endpoints.
const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"
	profilePath = "/auth/me"
)

// Config configures a Client.
type Config struct {
	BaseURL string

	LoginTimeout   time.Duration
	ProfileTimeout time.Duration
	RequestTimeout time.Duration

	// RequestsPerSecond limits outgoing requests; zero means unlimited.
	RequestsPerSecond float64
	Burst             int

	// Retries is the number of transport-level retries per request.
	Retries int

	// Now is used for token expiry checks.
	Now func() time.Time
}

// Client talks to the auth, lab-request and lab-result services.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	tokens  *TokenSource
	cfg     Config

	refreshMu sync.Mutex
}

// NewClient creates a REST client using tokens for authentication.
func NewClient(cfg Config, tokens *TokenSource) *Client {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = DefaultProfileTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if tokens == nil {
		tokens = NewTokenSource("", "")
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond) + 1
		}
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		tokens:  tokens,
		cfg:     cfg,
	}
}

// Tokens returns the client's token source.
func (c *Client) Tokens() *TokenSource { return c.tokens }

// call describes one REST request.
type call struct {
	endpoint  string // metric label
	method    string
	path      string
	timeout   time.Duration
	anonymous bool
	prepare   func(r *resty.Request)
}

// send executes cl with the session policy: refresh a known-expired token
// first, on 401 refresh once and retry, on 403 clear the credentials.
func (c *Client) send(ctx context.Context, cl call) (*resty.Response, error) {
	if !cl.anonymous && c.tokens.RefreshToken() != "" && c.tokens.Expired(c.cfg.Now()) {
		if err := c.Refresh(ctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Proactive token refresh failed")
		}
	}

	resp, err := c.attempt(ctx, cl)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized && !cl.anonymous {
		if c.tokens.RefreshToken() != "" {
			if rerr := c.Refresh(ctx); rerr == nil {
				resp, err = c.attempt(ctx, cl)
				if err != nil {
					return nil, err
				}
			} else {
				logging.Ctx(ctx).Warn().Err(rerr).Str("endpoint", cl.endpoint).Msg("Token refresh after 401 failed")
			}
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			c.tokens.Clear()
		}
	}

	if resp.StatusCode() == http.StatusForbidden {
		c.tokens.Clear()
	}

	if resp.IsError() {
		apiErr := newAPIError(resp.StatusCode(), resp.Body())
		logging.Ctx(ctx).Warn().
			Str("component", "labapi").
			Str("endpoint", cl.endpoint).
			Int("status", apiErr.StatusCode).
			Str("message", apiErr.Message).
			Msg("Lab API request failed")
		return nil, apiErr
	}
	return resp, nil
}

// attempt performs a single HTTP exchange.
func (c *Client) attempt(ctx context.Context, cl call) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", cl.endpoint, err)
	}

	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.http.R().SetContext(ctx)
	if !cl.anonymous {
		if token := c.tokens.AccessToken(); token != "" {
			req.SetAuthToken(token)
		}
	}
	if cl.prepare != nil {
		cl.prepare(req)
	}

	start := time.Now()
	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		metrics.RecordLabAPIRequest(cl.endpoint, 0, time.Since(start))
		logging.Ctx(ctx).Warn().Err(err).Str("component", "labapi").Str("endpoint", cl.endpoint).Msg("Lab API transport error")
		return nil, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}
	metrics.RecordLabAPIRequest(cl.endpoint, resp.StatusCode(), time.Since(start))
	return resp, nil
}

// decode unmarshals a response body into out.
func decode(resp *resty.Response, out interface{}) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL, err)
	}
	return nil
}

// ========================================
// Authentication
// ========================================

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserProfile is the signed-in user.
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UnmarshalJSON accepts numeric ids.
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Username string          `json:"username"`
		Email    string          `json:"email"`
		FullName string          `json:"full_name"`
		Role     string          `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = UserProfile{
		ID:       models.ScalarString(raw.ID),
		Username: raw.Username,
		Email:    raw.Email,
		FullName: raw.FullName,
		Role:     raw.Role,
	}
	return nil
}

// Login exchanges a username and password for tokens.
func (c *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	if username == "" || password == "" {
		return TokenResponse{}, ErrNoCredentials
	}

	resp, err := c.send(ctx, call{
		endpoint:  "login",
		method:    http.MethodPost,
		path:      loginPath,
		timeout:   c.cfg.LoginTimeout,
		anonymous: true,
		prepare: func(r *resty.Request) {
			r.SetFormData(map[string]string{"username": username, "password": password})
		},
	})
	if err != nil {
		return TokenResponse{}, fmt.Errorf("login: %w", err)
	}

	var tokens TokenResponse
	if err := decode(resp, &tokens); err != nil {
		return TokenResponse{}, err
	}
	if tokens.AccessToken == "" {
		return TokenResponse{}, fmt.Errorf("login: %w", &APIError{StatusCode: resp.StatusCode(), Message: "no access token in response"})
	}
	c.tokens.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	logging.Info().Str("component", "labapi").Str("username", username).Msg("Logged in to lab services")
	return tokens, nil
}

// Refresh obtains a new access token with the refresh token. Concurrent
// callers share one refresh.
func (c *Client) Refresh(ctx context.Context) error {
	before := c.tokens.AccessToken()

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller refreshed while we waited.
	if current := c.tokens.AccessToken(); current != before && current != "" {
		return nil
	}

	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return ErrNoCredentials
	}

	resp, err := c.send(ctx, call{
		endpoint:  "refresh",
		method:    http.MethodPost,
		path:      refreshPath,
		timeout:   c.cfg.LoginTimeout,
		anonymous: true,
		prepare: func(r *resty.Request) {
			r.SetHeader("Content-Type", "application/json").
				SetBody(map[string]string{"refresh_token": refreshToken})
		},
	})
	if err != nil {
		metrics.LabAPITokenRefreshes.WithLabelValues("failure").Inc()
		return fmt.Errorf("refresh token: %w", err)
	}

	var tokens TokenResponse
	if err := decode(resp, &tokens); err != nil || tokens.AccessToken == "" {
		metrics.LabAPITokenRefreshes.WithLabelValues("failure").Inc()
		if err == nil {
			err = &APIError{StatusCode: resp.StatusCode(), Message: "no access token in response"}
		}
		return fmt.Errorf("refresh token: %w", err)
	}

	c.tokens.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	metrics.LabAPITokenRefreshes.WithLabelValues("success").Inc()
	logging.Debug().Str("component", "labapi").Msg("Access token refreshed")
	return nil
}

// Profile fetches the signed-in user and records its id on the token source.
func (c *Client) Profile(ctx context.Context) (UserProfile, error) {
	resp, err := c.send(ctx, call{
		endpoint: "profile",
		method:   http.MethodGet,
		path:     profilePath,
		timeout:  c.cfg.ProfileTimeout,
	})
	if err != nil {
		return UserProfile{}, fmt.Errorf("fetch profile: %w", err)
	}

	var profile UserProfile
	if err := decode(resp, &profile); err != nil {
		return UserProfile{}, err
	}
	if profile.ID != "" {
		c.tokens.SetUserID(profile.ID)
	}
	return profile, nil
}
