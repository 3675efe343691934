// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package geo

import (
	"context"
	"errors"
)

// Permission is the position-access permission state reported by the
// platform before any fix is requested.
type Permission string

// Permission states. Prompt means the platform will ask the user on the
// first position request; the tracker treats it like granted and lets
// the request itself surface a denial.
const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// Position failure kinds. Watch timeouts are transient and suppressed;
// a denial is terminal for the session.
var (
	ErrPermissionDenied    = errors.New("geo: position permission denied")
	ErrPositionUnavailable = errors.New("geo: position unavailable")
	ErrTimeout             = errors.New("geo: position request timed out")
)

// WatchEvent is one delivery from a position watch: either a fix or a
// failure, never both.
type WatchEvent struct {
	Fix Fix
	Err error
}

// PositionSource abstracts the platform position API. Browser-embedded
// hosts back it with the geolocation API; native hosts with their OS
// location services; tests with a scripted sequence.
//
// Implementations must request high-accuracy positioning and must not
// serve cached fixes: a stale position is worse than a late one for
// proximity gameplay.
type PositionSource interface {
	// Permission reports the current permission state without
	// triggering a prompt.
	Permission(ctx context.Context) (Permission, error)

	// Current requests a single fresh fix. The deadline on ctx bounds
	// the wait; expiry surfaces as ErrTimeout.
	Current(ctx context.Context) (Fix, error)

	// Watch streams position updates until ctx is cancelled. The
	// returned channel is closed on cancellation. Failures are
	// delivered in-band as WatchEvent.Err so the stream survives
	// transient errors.
	Watch(ctx context.Context) (<-chan WatchEvent, error)
}
