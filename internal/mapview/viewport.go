// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package mapview

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/geo"
	"github.com/tomtom215/waypoint/internal/logging"
)

// FixStream is the position fan-out surface the viewport subscribes to.
// *geo.Tracker satisfies it.
type FixStream interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// Options configures a Viewport.
type Options struct {
	// Engine renders the map. Required.
	Engine MapEngine

	// AccessToken authenticates against the tile service. Required.
	AccessToken string

	// Style is the engine style URL.
	Style string

	// DefaultZoom is used for the one-time recentering. Default: 16.
	DefaultZoom float64
}

// Viewport mirrors the engine camera and recenters onto the user's
// position exactly once: the first accepted fix flies the camera there,
// after which the user owns the camera. Programmatic SetCenter/FlyTo
// calls do not re-arm the recentering.
type Viewport struct {
	engine      MapEngine
	accessToken string
	style       string
	defaultZoom float64

	mu         sync.RWMutex
	activated  bool
	recentered bool
	camera     Camera
	cancelSub  context.CancelFunc
	subDone    chan struct{}
}

// NewViewport creates a Viewport.
func NewViewport(opts Options) (*Viewport, error) {
	if opts.Engine == nil {
		return nil, errors.New("mapview: engine is required")
	}
	if opts.AccessToken == "" {
		return nil, errors.New("mapview: access token is required")
	}
	if opts.DefaultZoom <= 0 {
		opts.DefaultZoom = 16
	}

	return &Viewport{
		engine:      opts.Engine,
		accessToken: opts.AccessToken,
		style:       opts.Style,
		defaultZoom: opts.DefaultZoom,
	}, nil
}

// Activate initializes the engine and subscribes to the fix stream.
// Calling it again is a no-op, so hosts that re-render freely can call
// it on every render.
func (v *Viewport) Activate(ctx context.Context, fixes FixStream) error {
	v.mu.Lock()
	if v.activated {
		v.mu.Unlock()
		return nil
	}
	v.activated = true
	v.mu.Unlock()

	if err := v.engine.Activate(v.accessToken, v.style); err != nil {
		v.mu.Lock()
		v.activated = false
		v.mu.Unlock()
		return err
	}

	v.engine.OnCameraChange(v.mirrorCamera)

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := fixes.Subscribe(subCtx)
	if err != nil {
		cancel()
		v.mu.Lock()
		v.activated = false
		v.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	v.mu.Lock()
	v.cancelSub = cancel
	v.subDone = done
	v.mu.Unlock()

	go v.consumeFixes(stream, done)

	return nil
}

// consumeFixes drains the fix stream until it closes. Only the first
// fix moves the camera.
func (v *Viewport) consumeFixes(stream <-chan *message.Message, done chan struct{}) {
	defer close(done)

	for msg := range stream {
		var fix geo.Fix
		if err := json.Unmarshal(msg.Payload, &fix); err != nil {
			logging.Warn().Err(err).Msg("decode fix from stream")
			msg.Ack()
			continue
		}
		msg.Ack()

		v.mu.Lock()
		first := !v.recentered
		if first {
			v.recentered = true
		}
		v.mu.Unlock()

		if first {
			logging.Debug().Float64("lat", fix.Lat).Float64("lng", fix.Lng).Msg("recentering on first fix")
			v.FlyTo(fix.Lat, fix.Lng, v.defaultZoom)
		}
	}
}

// SetCenter moves the camera without changing zoom.
func (v *Viewport) SetCenter(lat, lng float64) {
	v.engine.SetCenter(lat, lng)
	v.mu.Lock()
	v.camera.Lat = lat
	v.camera.Lng = lng
	v.mu.Unlock()
}

// FlyTo animates the camera to a new center and zoom.
func (v *Viewport) FlyTo(lat, lng, zoom float64) {
	v.engine.FlyTo(lat, lng, zoom)
	v.mu.Lock()
	v.camera = Camera{Lat: lat, Lng: lng, Zoom: zoom}
	v.mu.Unlock()
}

// Camera returns the current camera state.
func (v *Viewport) Camera() Camera {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.camera
}

// Close unsubscribes from the fix stream and releases the engine.
func (v *Viewport) Close() error {
	v.mu.Lock()
	cancel := v.cancelSub
	done := v.subDone
	v.cancelSub = nil
	v.subDone = nil
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	return v.engine.Close()
}

// mirrorCamera records user-driven camera movement from the engine.
func (v *Viewport) mirrorCamera(cam Camera) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.camera = cam
}
