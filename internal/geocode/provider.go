// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package geocode resolves position fixes to human-readable place names
// for display next to the map. Lookups go to a free reverse-geocode
// service, so the resolver rate-limits and caches aggressively.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

// Place is a resolved location name.
type Place struct {
	City    string
	Region  string
	Country string
}

// ErrRateLimited is returned when a lookup is dropped to stay inside
// the provider's request budget.
var ErrRateLimited = errors.New("geocode: lookup rate limit exceeded")

// Provider resolves coordinates to a place name.
type Provider interface {
	// Reverse resolves lat/lng to a Place.
	Reverse(ctx context.Context, lat, lng float64) (Place, error)

	// Name returns the provider name for logging and metrics.
	Name() string

	// IsAvailable checks if the provider is properly configured.
	IsAvailable() bool
}

// HTTPProvider implements Provider against an ip-api style JSON
// endpoint: GET <url>?lat=..&lng=.. returning status/message plus the
// place fields.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
}

// reverseResponse is the provider's JSON response shape.
type reverseResponse struct {
	Status  string `json:"status"` // "success" or "fail"
	Message string `json:"message"`
	City    string `json:"city"`
	Region  string `json:"regionName"`
	Country string `json:"country"`
}

// NewHTTPProvider creates a reverse-geocode provider for baseURL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

// Name returns the provider name.
func (p *HTTPProvider) Name() string {
	return "reverse-http"
}

// IsAvailable returns true when a base URL is configured.
func (p *HTTPProvider) IsAvailable() bool {
	return p.baseURL != ""
}

// Reverse queries the service for a place name.
func (p *HTTPProvider) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	if !p.IsAvailable() {
		return Place{}, errors.New("geocode: provider URL not configured")
	}

	url := fmt.Sprintf("%s?lat=%s&lng=%s",
		p.baseURL,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Place{}, fmt.Errorf("create reverse geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("query reverse geocode service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("reverse geocode service returned status %d", resp.StatusCode)
	}

	var result reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Place{}, fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if result.Status != "success" {
		return Place{}, fmt.Errorf("reverse geocode lookup failed: %s", result.Message)
	}

	return Place{City: result.City, Region: result.Region, Country: result.Country}, nil
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Provider performs the lookups. Required.
	Provider Provider

	// RatePerMinute caps outbound lookups. Default: 45, the free-tier
	// budget of the usual services.
	RatePerMinute int

	// RetryAttempts and RetryDelay shape the backoff on transient
	// failures. Defaults: 3 attempts, 500ms initial delay.
	RetryAttempts int
	RetryDelay    time.Duration
}

// Resolver wraps a Provider with rate limiting, retry, and a cache
// keyed by coordinates rounded to ~100 m. Street-level churn does not
// change the city name, so neighboring fixes share a cache entry.
type Resolver struct {
	provider Provider
	limiter  *rate.Limiter
	attempts int
	delay    time.Duration

	mu    sync.RWMutex
	cache map[string]Place
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOptions) (*Resolver, error) {
	if opts.Provider == nil {
		return nil, errors.New("geocode: provider is required")
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = 45
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}

	return &Resolver{
		provider: opts.Provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1),
		attempts: opts.RetryAttempts,
		delay:    opts.RetryDelay,
		cache:    make(map[string]Place),
	}, nil
}

// Resolve returns the place name for a fix, from cache when possible.
// A lookup that would exceed the rate budget fails fast with
// ErrRateLimited rather than queueing; the caller keeps showing the
// previous name.
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64) (Place, error) {
	key := cacheKey(lat, lng)

	r.mu.RLock()
	place, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		metrics.GeocodeLookups.WithLabelValues("hit").Inc()
		return place, nil
	}

	if !r.limiter.Allow() {
		metrics.GeocodeLookups.WithLabelValues("rate_limited").Inc()
		return Place{}, ErrRateLimited
	}

	err := Retry(ctx, r.attempts, r.delay, func() error {
		var lookupErr error
		place, lookupErr = r.provider.Reverse(ctx, lat, lng)
		return lookupErr
	})
	if err != nil {
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
		return Place{}, fmt.Errorf("resolve place for %s: %w", key, err)
	}

	r.mu.Lock()
	r.cache[key] = place
	r.mu.Unlock()

	logging.Debug().Str("key", key).Str("city", place.City).Msg("resolved place")
	return place, nil
}

// cacheKey rounds coordinates to 3 decimal places, roughly 100 m.
func cacheKey(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', 3, 64) + "," + strconv.FormatFloat(lng, 'f', 3, 64)
}
