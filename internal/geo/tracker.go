// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

// TopicFixes is the pub/sub topic carrying accepted fixes, JSON-encoded.
const TopicFixes = "location.fixes"

// State is the tracker lifecycle state.
type State string

// Tracker states. Denied is terminal for the process: the user has to
// change a platform permission and reload, there is nothing to retry.
const (
	StateUninitialized      State = "uninitialized"
	StateCheckingPermission State = "checking_permission"
	StateDenied             State = "denied"
	StateWatching           State = "watching"
)

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	// Source is the platform position capability. Required.
	Source PositionSource

	// Env describes the host platform for remediation messages.
	Env Environment

	// MinMoveMeters overrides the movement threshold. Default: 25.
	MinMoveMeters float64

	// FirstFixTimeout bounds the initial one-shot fix. Default: 10s.
	FirstFixTimeout time.Duration
}

// Tracker owns the device position lifecycle: permission checks, the
// initial fix, the continuous watch, the movement-threshold acceptance
// rule, and fan-out of accepted fixes to subscribers.
type Tracker struct {
	source          PositionSource
	env             Environment
	minMove         float64
	firstFixTimeout time.Duration
	pubsub          *gochannel.GoChannel

	mu          sync.RWMutex
	state       State
	latest      *Fix
	errMsg      string
	loading     bool
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// NewTracker creates a Tracker. Start must be called before fixes flow.
func NewTracker(opts TrackerOptions) (*Tracker, error) {
	if opts.Source == nil {
		return nil, errors.New("geo: position source is required")
	}
	if opts.MinMoveMeters <= 0 {
		opts.MinMoveMeters = MinMoveMeters
	}
	if opts.FirstFixTimeout <= 0 {
		opts.FirstFixTimeout = 10 * time.Second
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 16,
	}, logging.NewWatermillAdapter())

	return &Tracker{
		source:          opts.Source,
		env:             opts.Env,
		minMove:         opts.MinMoveMeters,
		firstFixTimeout: opts.FirstFixTimeout,
		pubsub:          pubsub,
		state:           StateUninitialized,
	}, nil
}

// Start checks secure context and permission, requests the first fix,
// then starts the continuous watch. A denial puts the tracker in the
// terminal denied state and is also returned as an error; a first-fix
// timeout is recorded but the watch still starts.
func (t *Tracker) Start(ctx context.Context) error {
	// Loading spans the whole startup: permission check through the
	// first fix attempt.
	t.mu.Lock()
	t.state = StateCheckingPermission
	t.loading = true
	t.mu.Unlock()

	if !t.env.SecureContext {
		msg := RemediationSteps(t.env)
		t.fail(StateDenied, msg)
		return fmt.Errorf("geo: insecure context: %s", msg)
	}

	perm, err := t.source.Permission(ctx)
	if err != nil {
		t.fail(StateDenied, "Unable to determine location permission. "+RemediationSteps(t.env))
		return fmt.Errorf("query position permission: %w", err)
	}
	if perm == PermissionDenied {
		metrics.WatchErrors.WithLabelValues("permission").Inc()
		msg := "Location access has been denied. " + RemediationSteps(t.env)
		t.fail(StateDenied, msg)
		return ErrPermissionDenied
	}

	t.acquireFirstFix(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	events, err := t.source.Watch(watchCtx)
	if err != nil {
		cancel()
		t.fail(StateDenied, "Unable to watch device position. "+RemediationSteps(t.env))
		return fmt.Errorf("start position watch: %w", err)
	}

	done := make(chan struct{})
	t.mu.Lock()
	t.state = StateWatching
	t.cancelWatch = cancel
	t.watchDone = done
	t.mu.Unlock()

	go t.consumeWatch(events, done)

	return nil
}

// acquireFirstFix requests one fresh fix with the configured timeout.
// The loading flag clears when this resolves, whatever the outcome.
func (t *Tracker) acquireFirstFix(ctx context.Context) {
	defer func() {
		t.mu.Lock()
		t.loading = false
		t.mu.Unlock()
	}()

	fixCtx, cancel := context.WithTimeout(ctx, t.firstFixTimeout)
	defer cancel()

	fix, err := t.source.Current(fixCtx)
	if err != nil {
		metrics.WatchErrors.WithLabelValues(errKind(err)).Inc()
		logging.Warn().Err(err).Msg("initial position fix failed, continuing to watch")
		t.mu.Lock()
		t.errMsg = err.Error()
		t.mu.Unlock()
		return
	}

	t.handleFix(fix)
}

// consumeWatch drains watch events until the channel closes. Timeout
// errors are suppressed: they are routine on devices that lose GPS
// indoors and the previous fix stays valid. A permission revocation
// mid-watch is terminal.
func (t *Tracker) consumeWatch(events <-chan WatchEvent, done chan struct{}) {
	defer close(done)

	for ev := range events {
		if ev.Err == nil {
			t.handleFix(ev.Fix)
			continue
		}

		kind := errKind(ev.Err)
		metrics.WatchErrors.WithLabelValues(kind).Inc()

		switch {
		case errors.Is(ev.Err, ErrTimeout):
			logging.Debug().Err(ev.Err).Msg("watch timeout suppressed")
		case errors.Is(ev.Err, ErrPermissionDenied):
			logging.Warn().Msg("position permission revoked mid-watch")
			t.fail(StateDenied, "Location access has been revoked. "+RemediationSteps(t.env))
			return
		default:
			logging.Warn().Err(ev.Err).Msg("position watch error")
			t.mu.Lock()
			t.errMsg = ev.Err.Error()
			t.mu.Unlock()
		}
	}
}

// handleFix applies the acceptance rule and publishes accepted fixes.
func (t *Tracker) handleFix(fix Fix) {
	if !fix.Valid() {
		metrics.FixesSuppressed.Inc()
		logging.Warn().Float64("lat", fix.Lat).Float64("lng", fix.Lng).Msg("rejected fix with invalid coordinates")
		return
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	t.mu.Lock()
	if !shouldAccept(t.latest, fix, t.minMove) {
		t.mu.Unlock()
		metrics.FixesSuppressed.Inc()
		return
	}
	accepted := fix
	t.latest = &accepted
	t.errMsg = ""
	t.mu.Unlock()

	metrics.FixesAccepted.Inc()
	t.publish(accepted)
}

// publish fans the fix out to subscribers. Publish failure is logged
// and dropped; position data is ephemeral and the next fix supersedes
// this one anyway.
func (t *Tracker) publish(fix Fix) {
	payload, err := json.Marshal(fix)
	if err != nil {
		logging.Error().Err(err).Msg("encode fix for publish")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := t.pubsub.Publish(TopicFixes, msg); err != nil {
		logging.Warn().Err(err).Msg("publish fix")
	}
}

// Subscribe returns a channel of accepted fixes, JSON-encoded as Fix.
// Cancelling ctx ends the subscription.
func (t *Tracker) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return t.pubsub.Subscribe(ctx, TopicFixes)
}

// Latest returns the most recently accepted fix, if any.
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return Fix{}, false
	}
	return *t.latest, true
}

// Location adapts Latest to the API client's location accessor shape.
func (t *Tracker) Location() (lat, lng, accuracy float64, ok bool) {
	fix, ok := t.Latest()
	if !ok {
		return 0, 0, 0, false
	}
	return fix.Lat, fix.Lng, fix.Accuracy, true
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Err returns the current user-facing error message, empty when none.
func (t *Tracker) Err() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errMsg
}

// Loading reports whether startup is still resolving, from the
// permission check through the first fix attempt.
func (t *Tracker) Loading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading
}

// ClearError clears the published error message. It does not leave the
// denied state; only a fresh Start after the user fixes the permission
// can do that.
func (t *Tracker) ClearError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errMsg = ""
}

// Stop cancels the watch and closes the fix stream. Safe to call more
// than once.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	cancel := t.cancelWatch
	done := t.watchDone
	t.cancelWatch = nil
	t.watchDone = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	return t.pubsub.Close()
}

// fail records a terminal state with a user-facing message.
func (t *Tracker) fail(state State, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.errMsg = msg
	t.loading = false
}

// errKind classifies a position error for metrics.
func errKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrPermissionDenied):
		return "permission"
	default:
		return "position"
	}
}
