// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// fakeSource scripts a PositionSource: a permission answer, one current
// fix, and a sequence of watch events. The watch channel stays open
// after the scripted events until ctx is cancelled.
type fakeSource struct {
	perm       Permission
	permGate   chan struct{} // when set, Permission blocks until closed
	current    Fix
	currentErr error
	events     []WatchEvent
}

func (s *fakeSource) Permission(context.Context) (Permission, error) {
	if s.permGate != nil {
		<-s.permGate
	}
	return s.perm, nil
}

func (s *fakeSource) Current(context.Context) (Fix, error) {
	if s.currentErr != nil {
		return Fix{}, s.currentErr
	}
	return s.current, nil
}

func (s *fakeSource) Watch(ctx context.Context) (<-chan WatchEvent, error) {
	out := make(chan WatchEvent)
	go func() {
		defer close(out)
		for _, ev := range s.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

func secureEnv() Environment {
	return Environment{OS: "linux", Browser: "chrome", SecureContext: true}
}

func newTestTracker(t *testing.T, source PositionSource) *Tracker {
	t.Helper()
	tracker, err := NewTracker(TrackerOptions{
		Source:          source,
		Env:             secureEnv(),
		FirstFixTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	t.Cleanup(func() { _ = tracker.Stop() })
	return tracker
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestTrackerFirstFixAccepted(t *testing.T) {
	source := &fakeSource{
		perm:    PermissionGranted,
		current: Fix{Lat: 40.7128, Lng: -74.006, Accuracy: 10},
	}
	tracker := newTestTracker(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before Start: gochannel does not replay.
	fixes, err := tracker.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	latest, ok := tracker.Latest()
	if !ok || latest.Lat != 40.7128 {
		t.Fatalf("latest = %+v, ok = %v", latest, ok)
	}
	if tracker.Loading() {
		t.Error("loading must clear once the first fix resolves")
	}
	if tracker.State() != StateWatching {
		t.Errorf("state = %q", tracker.State())
	}

	select {
	case msg := <-fixes:
		var published Fix
		if err := json.Unmarshal(msg.Payload, &published); err != nil {
			t.Fatalf("decode published fix: %v", err)
		}
		msg.Ack()
		if published.Lat != 40.7128 || published.Lng != -74.006 {
			t.Errorf("published fix = %+v", published)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first fix was not published")
	}
}

func TestTrackerLoadingCoversPermissionCheck(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{
		perm:     PermissionGranted,
		permGate: gate,
		current:  Fix{Lat: 40.7128, Lng: -74.006},
	}
	tracker := newTestTracker(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan error, 1)
	go func() { started <- tracker.Start(ctx) }()

	// Loading must already be up while the permission query is pending.
	waitFor(t, tracker.Loading, "loading not set during permission check")
	if tracker.State() != StateCheckingPermission {
		t.Errorf("state = %q", tracker.State())
	}

	close(gate)
	if err := <-started; err != nil {
		t.Fatalf("start: %v", err)
	}
	if tracker.Loading() {
		t.Error("loading must clear once startup resolves")
	}
}

func TestTrackerSuppressesJitter(t *testing.T) {
	source := &fakeSource{
		perm:    PermissionGranted,
		current: Fix{Lat: 40.7128, Lng: -74.006},
		events: []WatchEvent{
			{Fix: Fix{Lat: 40.7128, Lng: -74.00602}}, // ~1.7 m: jitter
			{Fix: Fix{Lat: 40.715, Lng: -74.006}},    // ~245 m: movement
		},
	}
	tracker := newTestTracker(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool {
		fix, ok := tracker.Latest()
		return ok && fix.Lat == 40.715
	}, "moved fix never accepted")

	// The jitter fix must not have replaced the first one on the way.
	fix, _ := tracker.Latest()
	if fix.Lng != -74.006 {
		t.Errorf("jitter fix leaked through: %+v", fix)
	}
}

func TestTrackerRejectsInvalidFixes(t *testing.T) {
	source := &fakeSource{
		perm:       PermissionGranted,
		currentErr: ErrTimeout,
		events: []WatchEvent{
			{Fix: Fix{Lat: 91, Lng: 0}}, // out of range
			{Fix: Fix{Lat: 40.7128, Lng: -74.006}},
		},
	}
	tracker := newTestTracker(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool {
		_, ok := tracker.Latest()
		return ok
	}, "valid fix never accepted")

	fix, _ := tracker.Latest()
	if fix.Lat != 40.7128 {
		t.Errorf("invalid fix accepted: %+v", fix)
	}
}

func TestTrackerDeniedIsTerminal(t *testing.T) {
	source := &fakeSource{perm: PermissionDenied}
	tracker := newTestTracker(t, source)

	err := tracker.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if tracker.State() != StateDenied {
		t.Errorf("state = %q", tracker.State())
	}
	if tracker.Err() == "" {
		t.Error("denied state must carry remediation guidance")
	}

	// ClearError wipes the message but not the terminal state.
	tracker.ClearError()
	if tracker.Err() != "" {
		t.Error("ClearError did not clear the message")
	}
	if tracker.State() != StateDenied {
		t.Error("ClearError must not leave the denied state")
	}
}

func TestTrackerInsecureContextRefused(t *testing.T) {
	tracker, err := NewTracker(TrackerOptions{
		Source: &fakeSource{perm: PermissionGranted},
		Env:    Environment{OS: "linux", Browser: "chrome", SecureContext: false},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tracker.Stop() })

	if err := tracker.Start(context.Background()); err == nil {
		t.Fatal("expected insecure-context error")
	}
	if tracker.State() != StateDenied {
		t.Errorf("state = %q", tracker.State())
	}
}

func TestTrackerWatchTimeoutsSuppressed(t *testing.T) {
	source := &fakeSource{
		perm:    PermissionGranted,
		current: Fix{Lat: 40.7128, Lng: -74.006},
		events: []WatchEvent{
			{Err: ErrTimeout},
			{Fix: Fix{Lat: 40.715, Lng: -74.006}},
		},
	}
	tracker := newTestTracker(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool {
		fix, ok := tracker.Latest()
		return ok && fix.Lat == 40.715
	}, "fix after timeout never accepted")

	if got := tracker.Err(); got != "" {
		t.Errorf("timeout must not publish an error, got %q", got)
	}
	if tracker.State() != StateWatching {
		t.Errorf("state = %q", tracker.State())
	}
}

func TestTrackerPermissionRevokedMidWatch(t *testing.T) {
	source := &fakeSource{
		perm:    PermissionGranted,
		current: Fix{Lat: 40.7128, Lng: -74.006},
		events: []WatchEvent{
			{Err: ErrPermissionDenied},
		},
	}
	tracker := newTestTracker(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool {
		return tracker.State() == StateDenied
	}, "revocation did not reach the denied state")

	// The last good fix survives for display purposes.
	if _, ok := tracker.Latest(); !ok {
		t.Error("latest fix must survive a revocation")
	}
}

func TestTrackerLocationAccessor(t *testing.T) {
	source := &fakeSource{
		perm:    PermissionGranted,
		current: Fix{Lat: 40.7128, Lng: -74.006, Accuracy: 12.5},
	}
	tracker := newTestTracker(t, source)

	if _, _, _, ok := tracker.Location(); ok {
		t.Error("location must be absent before the first fix")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	lat, lng, accuracy, ok := tracker.Location()
	if !ok || lat != 40.7128 || lng != -74.006 || accuracy != 12.5 {
		t.Errorf("location = %v,%v,%v ok=%v", lat, lng, accuracy, ok)
	}
}
