// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/geo"
)

// recordingEngine captures engine calls for assertion.
type recordingEngine struct {
	mu            sync.Mutex
	activateCalls int
	flyTos        []Camera
	setCenters    []Camera
	listener      CameraListener
	closed        bool
}

func (e *recordingEngine) Activate(token, style string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activateCalls++
	return nil
}

func (e *recordingEngine) SetCenter(lat, lng float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setCenters = append(e.setCenters, Camera{Lat: lat, Lng: lng})
}

func (e *recordingEngine) FlyTo(lat, lng, zoom float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flyTos = append(e.flyTos, Camera{Lat: lat, Lng: lng, Zoom: zoom})
}

func (e *recordingEngine) OnCameraChange(fn CameraListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

func (e *recordingEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *recordingEngine) flyToCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.flyTos)
}

// fakeStream feeds scripted fixes to the viewport. subscribeErr fails
// the next Subscribe call, once.
type fakeStream struct {
	ch           chan *message.Message
	subscribeErr error
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan *message.Message, 8)}
}

func (s *fakeStream) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	if s.subscribeErr != nil {
		err := s.subscribeErr
		s.subscribeErr = nil
		return nil, err
	}
	out := make(chan *message.Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-s.ch:
				if !ok {
					return
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *fakeStream) emit(t *testing.T, fix geo.Fix) {
	t.Helper()
	payload, err := json.Marshal(fix)
	if err != nil {
		t.Fatal(err)
	}
	s.ch <- message.NewMessage(watermill.NewUUID(), payload)
}

func newTestViewport(t *testing.T, engine MapEngine) *Viewport {
	t.Helper()
	vp, err := NewViewport(Options{
		Engine:      engine,
		AccessToken: "pk.test",
		Style:       "style://dark",
		DefaultZoom: 16,
	})
	if err != nil {
		t.Fatalf("new viewport: %v", err)
	}
	return vp
}

func waitForFlyTos(t *testing.T, engine *recordingEngine, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if engine.flyToCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d FlyTo calls, got %d", n, engine.flyToCount())
}

func TestActivateIsIdempotent(t *testing.T) {
	engine := &recordingEngine{}
	vp := newTestViewport(t, engine)
	stream := newFakeStream()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := vp.Activate(ctx, stream); err != nil {
			t.Fatalf("activate #%d: %v", i+1, err)
		}
	}
	defer vp.Close()

	if engine.activateCalls != 1 {
		t.Errorf("engine activated %d times", engine.activateCalls)
	}
}

func TestActivateRetriesAfterSubscribeFailure(t *testing.T) {
	engine := &recordingEngine{}
	vp := newTestViewport(t, engine)
	stream := newFakeStream()
	stream.subscribeErr = errors.New("stream unavailable")

	ctx := context.Background()
	if err := vp.Activate(ctx, stream); err == nil {
		t.Fatal("expected subscribe error")
	}

	// The failed attempt must not latch the viewport active: the next
	// Activate has to reach the stream again.
	if err := vp.Activate(ctx, stream); err != nil {
		t.Fatalf("activate after failure: %v", err)
	}
	defer vp.Close()

	stream.emit(t, geo.Fix{Lat: 40.7128, Lng: -74.006})
	waitForFlyTos(t, engine, 1)
}

func TestFirstFixRecentersExactlyOnce(t *testing.T) {
	engine := &recordingEngine{}
	vp := newTestViewport(t, engine)
	stream := newFakeStream()

	if err := vp.Activate(context.Background(), stream); err != nil {
		t.Fatal(err)
	}
	defer vp.Close()

	stream.emit(t, geo.Fix{Lat: 40.7128, Lng: -74.006})
	waitForFlyTos(t, engine, 1)

	got := engine.flyTos[0]
	if got.Lat != 40.7128 || got.Lng != -74.006 || got.Zoom != 16 {
		t.Errorf("recenter camera = %+v", got)
	}

	// Later fixes must leave the camera alone.
	stream.emit(t, geo.Fix{Lat: 40.715, Lng: -74.006})
	stream.emit(t, geo.Fix{Lat: 40.72, Lng: -74.01})
	time.Sleep(50 * time.Millisecond)

	if n := engine.flyToCount(); n != 1 {
		t.Errorf("camera moved %d times, want 1", n)
	}
}

func TestProgrammaticMovesDoNotRearmRecentering(t *testing.T) {
	engine := &recordingEngine{}
	vp := newTestViewport(t, engine)
	stream := newFakeStream()

	if err := vp.Activate(context.Background(), stream); err != nil {
		t.Fatal(err)
	}
	defer vp.Close()

	stream.emit(t, geo.Fix{Lat: 40.7128, Lng: -74.006})
	waitForFlyTos(t, engine, 1)

	// Host moves the camera programmatically after the recenter.
	vp.FlyTo(51.5074, -0.1278, 12)
	vp.SetCenter(48.8566, 2.3522)
	waitForFlyTos(t, engine, 2)

	// A fresh fix must not snap the camera back.
	stream.emit(t, geo.Fix{Lat: 40.7128, Lng: -74.006})
	time.Sleep(50 * time.Millisecond)

	if n := engine.flyToCount(); n != 2 {
		t.Errorf("camera moved %d times, want 2", n)
	}
}

func TestCameraMirrorsEngineEvents(t *testing.T) {
	engine := &recordingEngine{}
	vp := newTestViewport(t, engine)

	if err := vp.Activate(context.Background(), newFakeStream()); err != nil {
		t.Fatal(err)
	}
	defer vp.Close()

	// Simulate a user dragging and zooming the map.
	engine.listener(Camera{Lat: 35.6762, Lng: 139.6503, Zoom: 11})

	got := vp.Camera()
	if got.Lat != 35.6762 || got.Lng != 139.6503 || got.Zoom != 11 {
		t.Errorf("camera = %+v", got)
	}
}

func TestCloseReleasesEngine(t *testing.T) {
	engine := &recordingEngine{}
	vp := newTestViewport(t, engine)
	stream := newFakeStream()

	if err := vp.Activate(context.Background(), stream); err != nil {
		t.Fatal(err)
	}

	close(stream.ch)
	if err := vp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !engine.closed {
		t.Error("engine must be closed")
	}
}
