// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/tomtom215/waypoint/internal/apiclient"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/storage"
)

// Flow is the verification flow state.
type Flow string

// Flow states. Errors are recoverable: a failed code request or a
// failed logister keeps the flow where it was so the user can retry.
const (
	FlowIdle          Flow = "idle"
	FlowCodeSent      Flow = "verification_code_sent"
	FlowAuthenticated Flow = "authenticated"
)

// ErrNotAuthenticated is returned by operations that need a live session.
var ErrNotAuthenticated = errors.New("auth: not authenticated")

// Session is the authentication state machine. All methods are safe for
// concurrent use; mutations are synchronous so callers observe the new
// state as soon as the call returns.
type Session struct {
	backend  Backend
	tokens   storage.TokenStore
	identity *storage.IdentityManager

	mu         sync.RWMutex
	flow       Flow
	user       *User
	loading    bool
	errMsg     string
	waiting    bool
	isRegister bool
}

// NewSession creates a Session. identity may be nil for hosts that do
// not track anonymous activity.
func NewSession(backend Backend, tokens storage.TokenStore, identity *storage.IdentityManager) (*Session, error) {
	if backend == nil {
		return nil, errors.New("auth: backend is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token store is required")
	}
	return &Session{
		backend:  backend,
		tokens:   tokens,
		identity: identity,
		flow:     FlowIdle,
	}, nil
}

// Restore resumes a previous session from the persisted token. A
// missing token is not an error. A token the backend rejects is
// cleared from storage so the next startup skips the round trip; a
// transport or server failure keeps the token, since it may still be
// valid. Either failure is recorded on the error surface and returned.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.tokens.Token()
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read persisted token: %w", err)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.backend.VerifyToken(ctx, token)
	if err != nil {
		if isAuthRejection(err) {
			logging.Info().Err(err).Msg("persisted token rejected, clearing")
			if clearErr := s.tokens.ClearToken(); clearErr != nil {
				logging.Warn().Err(clearErr).Msg("failed to clear rejected token")
			}
		} else {
			logging.Warn().Err(err).Msg("token verification failed, keeping token")
		}
		return s.recoverable(fmt.Errorf("restore session: %w", err))
	}

	s.establish(user)
	logging.Info().Str("user_id", user.ID).Msg("session restored")
	return nil
}

// RequestVerificationCode asks the backend to text a code to phone and
// records whether the eventual submit will be a login or a registration.
func (s *Session) RequestVerificationCode(ctx context.Context, phone string) error {
	if phone == "" {
		return s.recoverable(errors.New("auth: phone number is required"))
	}

	exists, err := s.backend.SendVerificationCode(ctx, phone)
	if err != nil {
		return s.recoverable(err)
	}

	s.mu.Lock()
	s.flow = FlowCodeSent
	s.waiting = true
	s.isRegister = !exists
	s.errMsg = ""
	s.mu.Unlock()

	return nil
}

// Logister submits the verification code, trying login first and
// falling back to register. The server is the source of truth for
// whether the account exists; the isRegister hint only shapes the UI.
// name is only sent on the register branch.
func (s *Session) Logister(ctx context.Context, phone, code, name string) error {
	if phone == "" || code == "" {
		return s.recoverable(errors.New("auth: phone number and code are required"))
	}

	user, token, err := s.backend.Login(ctx, phone, code)
	registered := false
	if err != nil {
		logging.Debug().Err(err).Msg("login failed, trying register")
		user, token, err = s.backend.Register(ctx, phone, code, name)
		if err != nil {
			return s.recoverable(fmt.Errorf("login and register both failed: %w", err))
		}
		registered = true
	}

	if err := s.tokens.SetToken(token); err != nil {
		return s.recoverable(fmt.Errorf("persist token: %w", err))
	}
	if s.identity != nil {
		if err := s.identity.Promote(user.ID); err != nil {
			logging.Warn().Err(err).Msg("identity promotion failed")
		}
	}

	s.establish(user)
	s.mu.Lock()
	s.isRegister = registered
	s.mu.Unlock()

	logging.Info().Str("user_id", user.ID).Bool("registered", registered).Msg("authenticated")
	return nil
}

// Logout drops the session: in-memory user, persisted token, and the
// device identity all revert synchronously.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.user = nil
	s.flow = FlowIdle
	s.waiting = false
	s.isRegister = false
	s.errMsg = ""
	s.mu.Unlock()

	if err := s.tokens.ClearToken(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if s.identity != nil {
		if _, err := s.identity.Demote(); err != nil {
			return fmt.Errorf("demote identity: %w", err)
		}
	}

	logging.Info().Msg("logged out")
	return nil
}

// Refresh re-fetches the current user. The party link and profile
// fields change server-side, so long-lived hosts poll this.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	authenticated := s.user != nil
	s.mu.RUnlock()
	if !authenticated {
		return ErrNotAuthenticated
	}

	user, err := s.backend.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("refresh user: %w", err)
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return nil
}

// User returns the authenticated user, nil when logged out. The pointer
// is a copy; mutating it does not affect the session.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Flow returns the verification flow state.
func (s *Session) Flow() Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flow
}

// Loading reports whether startup restoration is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the current recoverable error message, empty when none.
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// WaitingForVerificationCode reports whether a code has been sent and
// not yet submitted.
func (s *Session) WaitingForVerificationCode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waiting
}

// IsRegister reports whether the pending or completed submit is a
// registration rather than a login.
func (s *Session) IsRegister() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRegister
}

// ClearError clears the recoverable error message.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

// establish records a successful authentication.
func (s *Session) establish(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
	s.flow = FlowAuthenticated
	s.waiting = false
	s.errMsg = ""
}

// recoverable records err for the UI and returns it. The flow state is
// left untouched so the user can retry from where they were.
func (s *Session) recoverable(err error) error {
	s.mu.Lock()
	s.errMsg = err.Error()
	s.mu.Unlock()
	return err
}

// isAuthRejection reports whether err is the backend refusing the
// token, as opposed to a transport or server failure.
func isAuthRejection(err error) bool {
	var statusErr *apiclient.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized ||
		statusErr.StatusCode == http.StatusForbidden
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}
