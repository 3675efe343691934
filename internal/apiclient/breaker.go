// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package apiclient

import (
	"context"
	"errors"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

// BreakerSettings parameterizes the circuit breaker around the API
// transport.
type BreakerSettings struct {
	// Name labels metrics and logs. Default: "waypoint-api".
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval resets counts in the closed state; Timeout is how long
	// the breaker stays open before probing.
	Interval time.Duration
	Timeout  time.Duration

	// FailureRatio opens the breaker once MinRequests have been
	// observed in the current interval.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerSettings mirrors the thresholds used against other
// flaky upstreams: 60% failures over at least 10 requests.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "waypoint-api",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		FailureRatio: 0.6,
		MinRequests:  10,
	}
}

// CircuitBreakerClient wraps an API with a circuit breaker so a dead or
// drowning backend fails fast instead of stacking up timed-out calls.
//
// Auth rejections are not breaker failures: a 401 means the session is
// invalid, not that the backend is unhealthy, and the interceptor has
// already handled it by the time the error surfaces here.
type CircuitBreakerClient struct {
	api API
	cb  *gobreaker.CircuitBreaker[any]
}

// Ensure CircuitBreakerClient implements API.
var _ API = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient wraps api with a circuit breaker.
func NewCircuitBreakerClient(api API, settings BreakerSettings) *CircuitBreakerClient {
	if settings.Name == "" {
		settings.Name = "waypoint-api"
	}

	metrics.CircuitBreakerState.WithLabelValues(settings.Name).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= settings.FailureRatio

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// 4xx responses reached the backend; only transport errors
			// and 5xx count against the circuit.
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500
			}
			return false
		},
	})

	return &CircuitBreakerClient{api: api, cb: cb}
}

// Get issues a GET through the breaker.
func (c *CircuitBreakerClient) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.execute(func() error { return c.api.Get(ctx, path, query, out) })
}

// Post issues a POST through the breaker.
func (c *CircuitBreakerClient) Post(ctx context.Context, path string, body, out any) error {
	return c.execute(func() error { return c.api.Post(ctx, path, body, out) })
}

// Put issues a PUT through the breaker.
func (c *CircuitBreakerClient) Put(ctx context.Context, path string, body, out any) error {
	return c.execute(func() error { return c.api.Put(ctx, path, body, out) })
}

// Patch issues a PATCH through the breaker.
func (c *CircuitBreakerClient) Patch(ctx context.Context, path string, body, out any) error {
	return c.execute(func() error { return c.api.Patch(ctx, path, body, out) })
}

// Delete issues a DELETE through the breaker.
func (c *CircuitBreakerClient) Delete(ctx context.Context, path string, out any) error {
	return c.execute(func() error { return c.api.Delete(ctx, path, out) })
}

func (c *CircuitBreakerClient) execute(fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// stateToString converts gobreaker state to a readable string.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// stateToFloat converts gobreaker state to a metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
