// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package geo tracks the device position: it owns permission handling,
// the movement-threshold acceptance rule, and fan-out of accepted fixes
// to in-process subscribers.
package geo

import (
	"errors"
	"math"
	"time"
)

// MinMoveMeters is the default movement threshold. Fixes closer than
// this to the last accepted fix are suppressed so GPS jitter does not
// spam subscribers with phantom movement.
const MinMoveMeters = 25.0

// earthRadiusM is the mean Earth radius used by the haversine formula.
const earthRadiusM = 6371000.0

// ErrInvalidFix is returned for fixes with missing or out-of-range
// coordinates.
var ErrInvalidFix = errors.New("geo: fix has missing or invalid coordinates")

// Fix is one position report from the device.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the fix carries usable coordinates. Platform
// position APIs occasionally deliver NaN coordinates on cold starts;
// those fixes must never reach subscribers.
func (f Fix) Valid() bool {
	if math.IsNaN(f.Lat) || math.IsInf(f.Lat, 0) {
		return false
	}
	if math.IsNaN(f.Lng) || math.IsInf(f.Lng, 0) {
		return false
	}
	return f.Lat >= -90 && f.Lat <= 90 && f.Lng >= -180 && f.Lng <= 180
}

// DistanceMeters returns the great-circle distance between two fixes
// using the haversine formula.
func DistanceMeters(a, b Fix) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusM * c
}

// shouldAccept applies the movement threshold. The first fix is always
// accepted; later fixes must have moved at least minMove meters from
// the last accepted one. The comparison is a hard >=, so a fix at
// exactly the threshold is accepted.
func shouldAccept(prev *Fix, next Fix, minMove float64) bool {
	if prev == nil {
		return true
	}
	return DistanceMeters(*prev, next) >= minMove
}
