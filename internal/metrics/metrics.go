// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package metrics provides Prometheus instrumentation for the client SDK:
// API request latency and outcomes, auth-rejection handling, geolocation
// fix acceptance, and reverse-geocode lookups. Host applications expose
// these through their own /metrics endpoint or a push gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API client metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waypoint_api_request_duration_seconds",
			Help:    "Duration of backend API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	APIRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypoint_api_request_errors_total",
			Help: "Total number of backend API transport errors",
		},
		[]string{"method"},
	)

	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypoint_auth_rejections_total",
			Help: "Total number of 401/403 responses intercepted",
		},
		[]string{"status", "redirected"},
	)

	// Geolocation tracker metrics
	FixesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waypoint_geo_fixes_accepted_total",
			Help: "Location fixes accepted by the movement threshold rule",
		},
	)

	FixesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waypoint_geo_fixes_suppressed_total",
			Help: "Location fixes rejected as sub-threshold jitter",
		},
	)

	WatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypoint_geo_watch_errors_total",
			Help: "Errors delivered on the continuous position watch",
		},
		[]string{"kind"}, // "timeout", "permission", "position"
	)

	// Circuit breaker metrics (mirrors gobreaker state)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waypoint_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Reverse geocode metrics
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypoint_geocode_lookups_total",
			Help: "Reverse geocode lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "error", "rate_limited"
	)
)

// ObserveAPIRequest records one completed API round trip.
func ObserveAPIRequest(method string, status int, start time.Time) {
	APIRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// RecordAuthRejection records one intercepted 401/403 and whether it
// caused a navigation.
func RecordAuthRejection(status int, redirected bool) {
	AuthRejections.WithLabelValues(strconv.Itoa(status), strconv.FormatBool(redirected)).Inc()
}
