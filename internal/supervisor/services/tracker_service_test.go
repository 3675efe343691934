// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/waypoint/internal/geo"
)

// mockTracker implements PositionTracker for testing.
type mockTracker struct {
	startErr   error
	startCount atomic.Int32
	stopCount  atomic.Int32
}

func (m *mockTracker) Start(ctx context.Context) error {
	m.startCount.Add(1)
	return m.startErr
}

func (m *mockTracker) Stop() error {
	m.stopCount.Add(1)
	return nil
}

func TestTrackerServiceInterface(t *testing.T) {
	t.Parallel()
	var _ suture.Service = (*TrackerService)(nil)
}

func TestTrackerServiceStopsOnCancel(t *testing.T) {
	t.Parallel()

	tracker := &mockTracker{}
	svc := NewTrackerService(tracker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give Serve a moment to pass Start and block on ctx.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	if tracker.stopCount.Load() != 1 {
		t.Errorf("stop called %d times", tracker.stopCount.Load())
	}
}

func TestTrackerServiceDenialIsTerminal(t *testing.T) {
	t.Parallel()

	tracker := &mockTracker{startErr: geo.ErrPermissionDenied}
	svc := NewTrackerService(tracker)

	err := svc.Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("denial must not be restarted, got %v", err)
	}
}

func TestTrackerServiceTransientFailureRestartable(t *testing.T) {
	t.Parallel()

	tracker := &mockTracker{startErr: errors.New("watch setup failed")}
	svc := NewTrackerService(tracker)

	err := svc.Serve(context.Background())
	if err == nil || errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("transient failure must stay restartable, got %v", err)
	}
}
