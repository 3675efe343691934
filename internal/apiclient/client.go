// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
client.go - Backend REST API Client

Single point through which all backend calls are issued. Every request
is augmented with the persisted bearer token and, when a location
accessor is configured, the current fix as an X-User-Location header.
Every 401/403 response is intercepted: the token is cleared and, unless
the current navigation path is allow-listed, the host is redirected to
the login screen with the original path as return target.
*/

package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/storage"
)

// LocationFunc reports the device's current best-known fix. ok is false
// when no fix has been published yet; the location header is then
// omitted without failing the request.
type LocationFunc func() (lat, lng, accuracy float64, ok bool)

// API is the verb surface shared by Client and CircuitBreakerClient.
// out, when non-nil, receives the JSON-decoded response body.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// StatusError is returned for non-2xx responses. Transport failures are
// returned as-is, so callers can separate the two with errors.As.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the backend origin, e.g. https://api.example.com.
	BaseURL string

	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration

	// Tokens is the persisted token source. Required.
	Tokens storage.TokenStore

	// Location, when non-nil, supplies the X-User-Location header.
	Location LocationFunc

	// Navigator reports and changes the current navigation path.
	// Defaults to NopNavigator.
	Navigator Navigator

	// LoginPath is the navigation target on auth rejection.
	// Default: /login.
	LoginPath string

	// AllowedPaths are paths that never trigger the login redirect.
	// The login path and "/" are treated as allow-listed regardless.
	AllowedPaths map[string]struct{}

	// HTTPClient overrides the transport. Used by tests.
	HTTPClient *http.Client
}

// Client is the backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     storage.TokenStore
	location   LocationFunc
	navigator  Navigator
	loginPath  string
	allowed    map[string]struct{}
}

// Ensure Client implements API.
var _ API = (*Client)(nil)

// New creates a backend API client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("apiclient: BaseURL is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("apiclient: Tokens is required")
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Navigator == nil {
		opts.Navigator = NopNavigator{}
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}

	allowed := make(map[string]struct{}, len(opts.AllowedPaths)+2)
	for p := range opts.AllowedPaths {
		allowed[p] = struct{}{}
	}
	allowed[opts.LoginPath] = struct{}{}
	allowed["/"] = struct{}{}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     opts.Tokens,
		location:   opts.Location,
		navigator:  opts.Navigator,
		loginPath:  opts.LoginPath,
		allowed:    allowed,
	}, nil
}

// Get issues a GET request. query is serialized as URL query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

// do builds, augments and executes one request, then runs response
// interception before settling the result to the caller.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.augment(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(method).Inc()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.ObserveAPIRequest(method, resp.StatusCode, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.interceptAuthRejection(resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}

	return nil
}

// augment attaches the bearer token and location headers. Both are
// best-effort: a missing token or fix silently omits the header.
func (c *Client) augment(req *http.Request) {
	token, err := c.tokens.Token()
	if err == nil && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		logging.Warn().Err(err).Msg("token read failed, sending request unauthenticated")
	}

	if c.location == nil {
		return
	}
	lat, lng, accuracy, ok := c.location()
	if !ok {
		return
	}
	req.Header.Set("X-User-Location", formatLocationHeader(lat, lng, accuracy))
}

// interceptAuthRejection clears the session and, when the user is on a
// screen that requires authentication, sends them to the login screen
// carrying the original path. It never retries the request; the
// original error still propagates to the caller.
func (c *Client) interceptAuthRejection(status int) {
	if err := c.tokens.ClearToken(); err != nil {
		logging.Warn().Err(err).Msg("failed to clear token after auth rejection")
	}

	currentPath := c.navigator.CurrentPath()
	if _, ok := c.allowed[currentPath]; ok {
		metrics.RecordAuthRejection(status, false)
		logging.Debug().Int("status", status).Str("path", currentPath).Msg("auth rejection on allow-listed path, no redirect")
		return
	}

	target := loginRedirectTarget(c.loginPath, currentPath)
	metrics.RecordAuthRejection(status, true)
	logging.Info().Int("status", status).Str("from", currentPath).Str("target", target).Msg("auth rejected, redirecting to login")
	c.navigator.NavigateTo(target)
}

// formatLocationHeader encodes a fix as "lat,lng,accuracy".
func formatLocationHeader(lat, lng, accuracy float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(lng, 'f', -1, 64) + "," +
		strconv.FormatFloat(accuracy, 'f', -1, 64)
}
