// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package storage

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Identity is the dual-mode device identity: a real user ID once the
// device has authenticated, or an ephemeral UUID minted on first use so
// the backend can attribute pre-login activity.
//
// Invariant: exactly one of UserID / EphemeralUserID is non-empty.
type Identity struct {
	UserID          string
	EphemeralUserID string
}

// Authenticated reports whether this identity belongs to a logged-in user.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// IdentityManager owns the persisted identity keys.
type IdentityManager struct {
	store Store
}

// NewIdentityManager creates an IdentityManager over store.
func NewIdentityManager(store Store) *IdentityManager {
	return &IdentityManager{store: store}
}

// Current returns the device identity, minting and persisting an
// ephemeral UUID if the device has neither identity yet.
func (m *IdentityManager) Current() (Identity, error) {
	userID, err := m.store.Get(KeyUserID)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return Identity{}, fmt.Errorf("read user id: %w", err)
	}
	if userID != "" {
		return Identity{UserID: userID}, nil
	}

	ephemeral, err := m.store.Get(KeyEphemeralUserID)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return Identity{}, fmt.Errorf("read ephemeral user id: %w", err)
	}
	if ephemeral != "" {
		return Identity{EphemeralUserID: ephemeral}, nil
	}

	ephemeral = uuid.New().String()
	if err := m.store.Set(KeyEphemeralUserID, ephemeral); err != nil {
		return Identity{}, fmt.Errorf("persist ephemeral user id: %w", err)
	}

	return Identity{EphemeralUserID: ephemeral}, nil
}

// Promote records a successful authentication: the real user ID replaces
// the ephemeral one, preserving the exactly-one-identity invariant.
func (m *IdentityManager) Promote(userID string) error {
	if userID == "" {
		return errors.New("promote requires a non-empty user id")
	}

	if err := m.store.Set(KeyUserID, userID); err != nil {
		return fmt.Errorf("persist user id: %w", err)
	}
	if err := m.store.Delete(KeyEphemeralUserID); err != nil {
		return fmt.Errorf("clear ephemeral user id: %w", err)
	}

	return nil
}

// Demote reverts to anonymous identity on logout. A fresh ephemeral ID
// is minted so post-logout activity is not linked to the old account.
func (m *IdentityManager) Demote() (Identity, error) {
	if err := m.store.Delete(KeyUserID); err != nil {
		return Identity{}, fmt.Errorf("clear user id: %w", err)
	}

	ephemeral := uuid.New().String()
	if err := m.store.Set(KeyEphemeralUserID, ephemeral); err != nil {
		return Identity{}, fmt.Errorf("persist ephemeral user id: %w", err)
	}

	return Identity{EphemeralUserID: ephemeral}, nil
}
