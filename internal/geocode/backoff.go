// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package geocode

import (
	"context"
	"time"

	"github.com/tomtom215/waypoint/internal/logging"
)

// Retry executes fn with exponential backoff: delay doubles after each
// failed attempt. The context cancels both the wait and further
// attempts; cancellation during a wait returns the context error, not
// the last attempt's.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if attempt < attempts-1 {
			logging.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", attempts).Dur("delay", delay).Msg("Retry attempt")
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return err
}
