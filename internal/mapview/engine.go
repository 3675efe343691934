// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package mapview owns the map viewport: camera state mirrored from the
// rendering engine, and the one-time recentering onto the first
// position fix.
package mapview

// Camera is the viewport camera state.
type Camera struct {
	Lat  float64
	Lng  float64
	Zoom float64
}

// CameraListener receives camera state after every engine move or zoom.
type CameraListener func(Camera)

// MapEngine abstracts the rendering engine. Browser hosts back it with
// a WebGL map library; tests with a recorder. The engine is constructed
// once per viewport and must tolerate Activate being its first call.
type MapEngine interface {
	// Activate initializes the engine with the tile-service access
	// token and style URL.
	Activate(accessToken, style string) error

	// SetCenter moves the camera without changing zoom.
	SetCenter(lat, lng float64)

	// FlyTo animates the camera to a new center and zoom.
	FlyTo(lat, lng, zoom float64)

	// OnCameraChange registers the listener for user-driven zoom and
	// move events. Engines call it with the settled camera state.
	OnCameraChange(fn CameraListener)

	// Close releases engine resources.
	Close() error
}
