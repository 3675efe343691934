// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package services wraps the SDK's long-running components as suture
// services so the supervisor tree can restart them independently.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/waypoint/internal/geo"
)

// errDoNotRestart wraps err so suture stops supervising the service.
func errDoNotRestart(err error) error {
	return fmt.Errorf("%v: %w", err, suture.ErrDoNotRestart)
}

// PositionTracker matches geo.Tracker's lifecycle surface. The
// interface keeps this package free of a hard tracker dependency and
// lets tests script failures.
type PositionTracker interface {
	Start(ctx context.Context) error
	Stop() error
}

// TrackerService runs the position tracker under supervision. A
// transport-level crash restarts it; a permission denial does not,
// since no number of restarts fixes a user decision.
type TrackerService struct {
	tracker PositionTracker
	name    string
}

// NewTrackerService creates a tracker service wrapper.
func NewTrackerService(tracker PositionTracker) *TrackerService {
	return &TrackerService{
		tracker: tracker,
		name:    "position-tracker",
	}
}

// Serve implements suture.Service. It starts the tracker, blocks until
// the context is canceled, then stops the watch. A permission denial
// terminates the service permanently via suture.ErrDoNotRestart.
func (s *TrackerService) Serve(ctx context.Context) error {
	if err := s.tracker.Start(ctx); err != nil {
		if errors.Is(err, geo.ErrPermissionDenied) {
			return errDoNotRestart(err)
		}
		return err
	}

	<-ctx.Done()
	if err := s.tracker.Stop(); err != nil {
		return err
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *TrackerService) String() string {
	return s.name
}
