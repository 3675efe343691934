// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Waypoint client SDK.
// Loaded via LoadWithKoanf with precedence ENV > file > defaults.
type Config struct {
	API     APIConfig     `koanf:"api" validate:"required"`
	Geo     GeoConfig     `koanf:"geo"`
	Map     MapConfig     `koanf:"map"`
	Storage StorageConfig `koanf:"storage"`
	Geocode GeocodeConfig `koanf:"geocode"`
	Breaker BreakerConfig `koanf:"breaker"`
	Logging LoggingConfig `koanf:"logging"`
}

// APIConfig configures the backend API client.
type APIConfig struct {
	// BaseURL is the backend origin, e.g. https://api.example.com
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// URIPrefix is prepended to auth endpoints, e.g. /sonar
	URIPrefix string `koanf:"uri_prefix"`

	// AppName brands the verification SMS sent by the backend.
	AppName string `koanf:"app_name" validate:"required"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// LoginPath is the navigation target on auth rejection.
	LoginPath string `koanf:"login_path" validate:"required,startswith=/"`

	// AllowedPaths are navigation paths that never trigger a login
	// redirect on 401/403. LoginPath and "/" are always included.
	AllowedPaths []string `koanf:"allowed_paths"`
}

// GeoConfig configures the geolocation tracker.
type GeoConfig struct {
	// MinMoveMeters is the movement threshold below which new fixes
	// are suppressed. The acceptance rule is distance >= threshold.
	MinMoveMeters float64 `koanf:"min_move_meters" validate:"min=0"`

	// FirstFixTimeout bounds the initial one-shot position request.
	FirstFixTimeout time.Duration `koanf:"first_fix_timeout" validate:"min=1s"`

	// WatchTimeout bounds each fix delivery on the continuous watch.
	WatchTimeout time.Duration `koanf:"watch_timeout" validate:"min=1s"`
}

// MapConfig configures the map viewport.
type MapConfig struct {
	// AccessToken authenticates against the tile/map engine.
	AccessToken string `koanf:"access_token"`

	// Style is the map style identifier passed to the engine.
	Style string `koanf:"style"`

	// DefaultZoom is the camera zoom before and after first centering.
	DefaultZoom float64 `koanf:"default_zoom" validate:"min=0,max=24"`
}

// StorageConfig configures the durable client-side key-value store.
type StorageConfig struct {
	// Path is the BadgerDB directory. Empty means in-memory (tests).
	Path string `koanf:"path"`
}

// GeocodeConfig configures the reverse-geocode (city name) helper.
type GeocodeConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL is the lookup endpoint; latitude/longitude are appended as
	// query parameters.
	URL string `koanf:"url" validate:"omitempty,url"`

	// RetryAttempts and RetryDelay parameterize the exponential
	// backoff wrapper around lookups.
	RetryAttempts int           `koanf:"retry_attempts" validate:"min=1,max=10"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"min=10ms"`

	// RatePerMinute caps outbound lookups (free tiers are strict).
	RatePerMinute int `koanf:"rate_per_minute" validate:"min=1"`
}

// BreakerConfig configures the optional circuit breaker around the
// API transport.
type BreakerConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxRequests allowed through in half-open state.
	MaxRequests uint32 `koanf:"max_requests" validate:"min=1"`

	// Interval resets counts while closed; Timeout is the open period.
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`

	// FailureRatio opens the breaker once MinRequests have been seen.
	FailureRatio float64 `koanf:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32  `koanf:"min_requests" validate:"min=1"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that required configuration is present and valid.
// Struct tags cover range and format checks; cross-field rules that
// tags cannot express are checked by hand below.
func (c *Config) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("config field %s failed %q validation", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateGeocode()
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", parsed.Scheme)
	}

	if c.API.URIPrefix != "" && !strings.HasPrefix(c.API.URIPrefix, "/") {
		return fmt.Errorf("api.uri_prefix must start with /, got %q", c.API.URIPrefix)
	}

	for _, p := range c.API.AllowedPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("api.allowed_paths entries must start with /, got %q", p)
		}
	}

	return nil
}

func (c *Config) validateGeocode() error {
	if c.Geocode.Enabled && c.Geocode.URL == "" {
		return fmt.Errorf("geocode.url is required when geocode.enabled=true")
	}
	return nil
}

// AllowedPathSet returns the effective redirect allow-list: configured
// paths plus the login path and the root path. The login path must be
// allow-listed or the 401 interceptor would redirect-loop on itself.
func (c *APIConfig) AllowedPathSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.AllowedPaths)+2)
	for _, p := range c.AllowedPaths {
		set[p] = struct{}{}
	}
	set[c.LoginPath] = struct{}{}
	set["/"] = struct{}{}
	return set
}
