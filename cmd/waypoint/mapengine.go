// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"fmt"

	"github.com/tomtom215/waypoint/internal/mapview"
)

// consoleEngine implements mapview.MapEngine by printing camera moves.
// It stands in for a real rendering engine in the terminal demo.
type consoleEngine struct{}

func (consoleEngine) Activate(accessToken, style string) error {
	fmt.Printf("map ready (style %s)\n", style)
	return nil
}

func (consoleEngine) SetCenter(lat, lng float64) {
	fmt.Printf("map center %.5f,%.5f\n", lat, lng)
}

func (consoleEngine) FlyTo(lat, lng, zoom float64) {
	fmt.Printf("map fly to %.5f,%.5f @ z%.1f\n", lat, lng, zoom)
}

func (consoleEngine) OnCameraChange(mapview.CameraListener) {
	// The terminal has no user-driven camera; nothing to register.
}

func (consoleEngine) Close() error { return nil }
