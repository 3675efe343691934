// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/logging"
)

// UserRefresher matches auth.Session's Refresh surface.
type UserRefresher interface {
	Refresh(ctx context.Context) error
}

// RefreshService periodically re-fetches the current user so party
// membership and profile changes made on other devices show up without
// a restart. Not being logged in is a normal condition, not a failure.
type RefreshService struct {
	session  UserRefresher
	interval time.Duration
	name     string
}

// NewRefreshService creates a refresh service. interval defaults to
// one minute.
func NewRefreshService(session UserRefresher, interval time.Duration) *RefreshService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RefreshService{
		session:  session,
		interval: interval,
		name:     "user-refresher",
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := s.session.Refresh(ctx)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrNotAuthenticated):
				// Logged out; nothing to refresh this tick.
			default:
				logging.Warn().Err(err).Msg("user refresh failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *RefreshService) String() string {
	return s.name
}
