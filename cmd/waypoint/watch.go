// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/geo"
	"github.com/tomtom215/waypoint/internal/geocode"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/mapview"
	"github.com/tomtom215/waypoint/internal/supervisor"
	"github.com/tomtom215/waypoint/internal/supervisor/services"
)

// runWatch tracks position fixes typed on stdin as "lat,lng[,accuracy]"
// lines, runs the tracker and session refresher under the supervisor
// tree, and prints accepted fixes with an optional resolved place name.
func runWatch(ctx context.Context, cfg *config.Config) error {
	s, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.session.Restore(ctx); err != nil {
		return err
	}

	tracker, err := geo.NewTracker(geo.TrackerOptions{
		Source: &stdinSource{input: os.Stdin},
		Env: geo.Environment{
			OS: runtime.GOOS,
			// A local terminal is not subject to browser secure-context
			// rules; treat it as secure so the tracker activates.
			SecureContext: true,
		},
		MinMoveMeters:   cfg.Geo.MinMoveMeters,
		FirstFixTimeout: cfg.Geo.FirstFixTimeout,
	})
	if err != nil {
		return err
	}

	var resolver *geocode.Resolver
	if cfg.Geocode.Enabled {
		resolver, err = geocode.NewResolver(geocode.ResolverOptions{
			Provider:      geocode.NewHTTPProvider(cfg.Geocode.URL),
			RatePerMinute: cfg.Geocode.RatePerMinute,
			RetryAttempts: cfg.Geocode.RetryAttempts,
			RetryDelay:    cfg.Geocode.RetryDelay,
		})
		if err != nil {
			return err
		}
	}

	if cfg.Map.AccessToken != "" {
		viewport, err := mapview.NewViewport(mapview.Options{
			Engine:      consoleEngine{},
			AccessToken: cfg.Map.AccessToken,
			Style:       cfg.Map.Style,
			DefaultZoom: cfg.Map.DefaultZoom,
		})
		if err != nil {
			return err
		}
		if err := viewport.Activate(ctx, tracker); err != nil {
			return err
		}
		defer func() {
			if err := viewport.Close(); err != nil {
				logging.Warn().Err(err).Msg("close viewport")
			}
		}()
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddLocationService(services.NewTrackerService(tracker))
	tree.AddSessionService(services.NewRefreshService(s.session, time.Minute))

	fixes, err := tracker.Subscribe(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Enter fixes as lat,lng[,accuracy]; Ctrl-D or Ctrl-C to stop.")
	treeErr := tree.ServeBackground(ctx)

	for {
		select {
		case err := <-treeErr:
			return err
		case <-ctx.Done():
			return nil
		case msg, ok := <-fixes:
			if !ok {
				return nil
			}
			var fix geo.Fix
			if err := json.Unmarshal(msg.Payload, &fix); err != nil {
				logging.Warn().Err(err).Msg("decode fix")
				msg.Ack()
				continue
			}
			msg.Ack()
			printFix(ctx, fix, resolver)
		}
	}
}

func printFix(ctx context.Context, fix geo.Fix, resolver *geocode.Resolver) {
	line := fmt.Sprintf("fix %.5f,%.5f (±%.0fm)", fix.Lat, fix.Lng, fix.Accuracy)
	if resolver != nil {
		if place, err := resolver.Resolve(ctx, fix.Lat, fix.Lng); err == nil && place.City != "" {
			line += " near " + place.City
		}
	}
	fmt.Println(line)
}

// stdinSource implements geo.PositionSource over line-based input, for
// demos and manual testing without location hardware. A single reader
// goroutine owns the scanner; Current and Watch both draw from it, so
// a timed-out Current cannot race a later Watch.
type stdinSource struct {
	input io.Reader
	once  sync.Once
	lines chan string
}

func (s *stdinSource) Permission(context.Context) (geo.Permission, error) {
	return geo.PermissionGranted, nil
}

func (s *stdinSource) Current(ctx context.Context) (geo.Fix, error) {
	s.start()

	select {
	case line, ok := <-s.lines:
		if !ok {
			return geo.Fix{}, geo.ErrPositionUnavailable
		}
		return parseFixLine(line)
	case <-ctx.Done():
		return geo.Fix{}, geo.ErrTimeout
	}
}

func (s *stdinSource) Watch(ctx context.Context) (<-chan geo.WatchEvent, error) {
	s.start()

	out := make(chan geo.WatchEvent)
	go func() {
		defer close(out)
		for {
			select {
			case line, ok := <-s.lines:
				if !ok {
					return
				}
				fix, err := parseFixLine(line)
				select {
				case out <- geo.WatchEvent{Fix: fix, Err: err}:
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

func (s *stdinSource) start() {
	s.once.Do(func() {
		s.lines = make(chan string)
		go func() {
			defer close(s.lines)
			scanner := bufio.NewScanner(s.input)
			for scanner.Scan() {
				s.lines <- scanner.Text()
			}
		}()
	})
}

// parseFixLine parses "lat,lng[,accuracy]".
func parseFixLine(line string) (geo.Fix, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 2 {
		return geo.Fix{}, fmt.Errorf("expected lat,lng[,accuracy], got %q", line)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Fix{}, fmt.Errorf("parse latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Fix{}, fmt.Errorf("parse longitude: %w", err)
	}

	fix := geo.Fix{Lat: lat, Lng: lng, Timestamp: time.Now()}
	if len(parts) > 2 {
		if accuracy, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil {
			fix.Accuracy = accuracy
		}
	}
	return fix, nil
}
