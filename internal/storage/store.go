// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package storage provides the durable client-side key-value store that
// outlives a single session: the bearer token and the device identity
// keys. It is the one piece of shared mutable state in the SDK; the API
// client reads the token per request while the auth session writes it
// on login, registration and logout.
package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Well-known keys. The token key is read on every outgoing API request.
const (
	KeyToken           = "token"
	KeyUserID          = "user-id"
	KeyEphemeralUserID = "ephemeral-user-id"
)

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = errors.New("storage: key not found")

// Store is durable string key-value storage.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// TokenStore is the narrow read surface the API client needs. Reading
// through storage rather than through the auth session's in-memory
// state is what breaks the client/session dependency cycle.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// BadgerStore implements Store on BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// Open opens a BadgerDB-backed store at path. An empty path opens an
// in-memory database, which is what tests use.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for client storage: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// Get retrieves the value for key.
func (s *BadgerStore) Get(key string) (string, error) {
	var value string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}

		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return value, nil
}

// Set stores value under key.
func (s *BadgerStore) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Tokens adapts a Store into the TokenStore surface.
type Tokens struct {
	store Store
}

// NewTokens wraps store as a TokenStore.
func NewTokens(store Store) *Tokens {
	return &Tokens{store: store}
}

// Token returns the persisted bearer token, or ErrKeyNotFound.
func (t *Tokens) Token() (string, error) {
	return t.store.Get(KeyToken)
}

// SetToken persists the bearer token.
func (t *Tokens) SetToken(token string) error {
	return t.store.Set(KeyToken, token)
}

// ClearToken removes the persisted bearer token.
func (t *Tokens) ClearToken() error {
	return t.store.Delete(KeyToken)
}

// interface guards
var (
	_ Store      = (*BadgerStore)(nil)
	_ TokenStore = (*Tokens)(nil)
)
