// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package main is the Waypoint demo client.
//
// It wires the SDK the way an embedding game shell would: configuration
// via Koanf (env > file > defaults), the Badger-backed session store,
// the authenticated API client, and the phone-verification session.
//
// Subcommands:
//
//	waypoint login -phone +15550001111        Request a code and sign in
//	waypoint whoami                           Show the current session
//	waypoint watch                            Track position fixes from stdin
//
// Configuration comes from waypoint.yaml or WAYPOINT_* environment
// variables, e.g.:
//
//	export WAYPOINT_API_BASE_URL=https://api.example.com
//	export WAYPOINT_STORAGE_PATH=~/.waypoint
//	./waypoint login -phone +15550001111
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tomtom215/waypoint/internal/apiclient"
	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/storage"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch os.Args[1] {
	case "login":
		runErr = runLogin(ctx, cfg, os.Args[2:])
	case "whoami":
		runErr = runWhoami(ctx, cfg)
	case "watch":
		runErr = runWatch(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		logging.Fatal().Err(runErr).Str("command", os.Args[1]).Msg("Command failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: waypoint <login|whoami|watch> [flags]")
}

// stack holds the wired client components shared by all subcommands.
type stack struct {
	store   *storage.BadgerStore
	tokens  *storage.Tokens
	api     apiclient.API
	session *auth.Session
}

// buildStack wires storage, the API client (with the circuit breaker
// when enabled), and the auth session from configuration.
func buildStack(cfg *config.Config) (*stack, error) {
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	tokens := storage.NewTokens(store)

	var api apiclient.API
	client, err := apiclient.New(apiclient.Options{
		BaseURL:      cfg.API.BaseURL,
		Timeout:      cfg.API.Timeout,
		Tokens:       tokens,
		LoginPath:    cfg.API.LoginPath,
		AllowedPaths: cfg.API.AllowedPathSet(),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build api client: %w", err)
	}
	api = client

	if cfg.Breaker.Enabled {
		api = apiclient.NewCircuitBreakerClient(api, apiclient.BreakerSettings{
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			FailureRatio: cfg.Breaker.FailureRatio,
			MinRequests:  cfg.Breaker.MinRequests,
		})
	}

	authClient, err := auth.NewClient(api, cfg.API.URIPrefix, cfg.API.AppName)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build auth client: %w", err)
	}
	session, err := auth.NewSession(authClient, tokens, storage.NewIdentityManager(store))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build session: %w", err)
	}

	return &stack{store: store, tokens: tokens, api: api, session: session}, nil
}

func (s *stack) close() {
	if err := s.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing session store")
	}
}

func runLogin(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("login", flag.ExitOnError)
	phone := flags.String("phone", "", "phone number in E.164 format")
	name := flags.String("name", "", "display name for new accounts")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *phone == "" {
		return fmt.Errorf("login: -phone is required")
	}

	s, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.session.RequestVerificationCode(ctx, *phone); err != nil {
		return err
	}
	if s.session.IsRegister() {
		fmt.Println("No account for this number yet; one will be created.")
	}

	fmt.Print("Verification code: ")
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read verification code: %w", err)
	}
	code = strings.TrimSpace(code)

	if err := s.session.Logister(ctx, *phone, code, *name); err != nil {
		return err
	}

	user := s.session.User()
	fmt.Printf("Signed in as %s (%s)\n", user.Name, user.ID)
	return nil
}

func runWhoami(ctx context.Context, cfg *config.Config) error {
	s, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.session.Restore(ctx); err != nil {
		return err
	}

	user := s.session.User()
	if user == nil {
		fmt.Println("Not signed in.")
		return nil
	}

	fmt.Printf("%s (%s)\n", user.Name, user.ID)
	if user.PartyID != "" {
		fmt.Printf("party: %s\n", user.PartyID)
	}
	return nil
}
