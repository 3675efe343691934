// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

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

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"waypoint.yaml",
	"waypoint.yml",
	"/etc/waypoint/config.yaml",
	"/etc/waypoint/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "WAYPOINT_CONFIG"

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8089",
			URIPrefix: "/sonar",
			AppName:   "Waypoint",
			Timeout:   30 * time.Second,
			LoginPath: "/login",
			AllowedPaths: []string{
				"/login",
				"/",
				"/about",
			},
		},
		Geo: GeoConfig{
			MinMoveMeters:   25,
			FirstFixTimeout: 10 * time.Second,
			WatchTimeout:    20 * time.Second,
		},
		Map: MapConfig{
			AccessToken: "",
			Style:       "",
			DefaultZoom: 16,
		},
		Storage: StorageConfig{
			Path: "", // in-memory unless configured
		},
		Geocode: GeocodeConfig{
			Enabled:       false,
			URL:           "",
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
			RatePerMinute: 45, // ip-api.com free tier limit
		},
		Breaker: BreakerConfig{
			Enabled:      false,
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      2 * time.Minute,
			FailureRatio: 0.6,
			MinRequests:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// WAYPOINT_API_BASE_URL -> api.base_url etc.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
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

// findConfigFile searches for a config file in the default paths.
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

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when sourced from environment variables.
var sliceConfigPaths = []string{
	"api.allowed_paths",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars arrive as strings; YAML values are
// already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unknown variables return "" and are skipped, which keeps unrelated
// environment noise out of the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"waypoint_api_base_url":      "api.base_url",
		"waypoint_api_uri_prefix":    "api.uri_prefix",
		"waypoint_app_name":          "api.app_name",
		"waypoint_api_timeout":       "api.timeout",
		"waypoint_login_path":        "api.login_path",
		"waypoint_allowed_paths":     "api.allowed_paths",
		"waypoint_min_move_meters":   "geo.min_move_meters",
		"waypoint_first_fix_timeout": "geo.first_fix_timeout",
		"waypoint_watch_timeout":     "geo.watch_timeout",
		"waypoint_map_access_token":  "map.access_token",
		"waypoint_map_style":         "map.style",
		"waypoint_map_default_zoom":  "map.default_zoom",
		"waypoint_storage_path":      "storage.path",

		"waypoint_geocode_enabled":     "geocode.enabled",
		"waypoint_geocode_url":         "geocode.url",
		"waypoint_geocode_retries":     "geocode.retry_attempts",
		"waypoint_geocode_retry_delay": "geocode.retry_delay",
		"waypoint_geocode_rate":        "geocode.rate_per_minute",

		"waypoint_breaker_enabled":       "breaker.enabled",
		"waypoint_breaker_max_requests":  "breaker.max_requests",
		"waypoint_breaker_interval":      "breaker.interval",
		"waypoint_breaker_timeout":       "breaker.timeout",
		"waypoint_breaker_failure_ratio": "breaker.failure_ratio",
		"waypoint_breaker_min_requests":  "breaker.min_requests",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
