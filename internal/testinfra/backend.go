// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package testinfra provides an in-process mock of the game backend for
// integration tests: the verification-code endpoints, login/register,
// token verification, and whoami, with in-memory accounts.
package testinfra

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultCode is the verification code the mock backend accepts.
const DefaultCode = "123456"

// Account is a registered user in the mock backend.
type Account struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	PartyID     string `json:"partyId,omitempty"`
}

// Backend is an in-memory mock of the game backend's auth surface.
type Backend struct {
	server *httptest.Server

	mu       sync.Mutex
	accounts map[string]*Account // keyed by phone number
	tokens   map[string]string   // token -> account id
	codes    int                 // verification codes sent
}

// NewBackend starts a mock backend. Callers own shutdown via Close.
func NewBackend() *Backend {
	b := &Backend{
		accounts: make(map[string]*Account),
		tokens:   make(map[string]string),
	}

	r := chi.NewRouter()
	r.Route("/sonar", func(r chi.Router) {
		r.Post("/text/verification-code", b.handleVerificationCode)
		r.Post("/login", b.handleLogin)
		r.Post("/register", b.handleRegister)
		r.Post("/token/verify", b.handleVerifyToken)
		r.Get("/whoami", b.handleWhoami)
	})

	b.server = httptest.NewServer(r)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// Close shuts the backend down.
func (b *Backend) Close() {
	b.server.Close()
}

// Seed registers an account directly, bypassing the verification flow.
func (b *Backend) Seed(account Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	b.accounts[account.PhoneNumber] = &account
}

// IssueToken mints a valid token for an already-seeded phone number.
func (b *Backend) IssueToken(phone string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	account, ok := b.accounts[phone]
	if !ok {
		return "", false
	}
	token := uuid.New().String()
	b.tokens[token] = account.ID
	return token, true
}

// RevokeToken invalidates a previously issued token.
func (b *Backend) RevokeToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// CodesSent reports how many verification codes were requested.
func (b *Backend) CodesSent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes
}

// SetParty links an account to a party.
func (b *Backend) SetParty(phone, partyID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if account, ok := b.accounts[phone]; ok {
		account.PartyID = partyID
	}
}

func (b *Backend) handleVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		AppName     string `json:"appName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" || req.AppName == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber and appName are required")
		return
	}

	b.mu.Lock()
	b.codes++
	account := b.accounts[req.PhoneNumber]
	b.mu.Unlock()

	resp := struct {
		User *Account `json:"user,omitempty"`
	}{User: account}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	phone, ok := b.decodeCredentials(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	account, exists := b.accounts[phone]
	if !exists {
		writeError(w, http.StatusNotFound, "no account for this phone number")
		return
	}

	token := uuid.New().String()
	b.tokens[token] = account.ID
	writeJSON(w, http.StatusOK, sessionBody(account, token))
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
		Name        string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}
	if req.Code != DefaultCode {
		writeError(w, http.StatusUnauthorized, "wrong verification code")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[req.PhoneNumber]; exists {
		writeError(w, http.StatusConflict, "account already exists")
		return
	}

	name := req.Name
	if name == "" {
		name = "Player " + req.PhoneNumber[len(req.PhoneNumber)-4:]
	}
	account := &Account{
		ID:          uuid.New().String(),
		Name:        name,
		PhoneNumber: req.PhoneNumber,
	}
	b.accounts[req.PhoneNumber] = account

	token := uuid.New().String()
	b.tokens[token] = account.ID
	writeJSON(w, http.StatusOK, sessionBody(account, token))
}

func (b *Backend) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	account, ok := b.accountForToken(req.Token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (b *Backend) handleWhoami(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	account, ok := b.accountForToken(token)
	if !ok {
		writeError(w, http.StatusForbidden, "token revoked")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (b *Backend) decodeCredentials(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phoneNumber is required")
		return "", false
	}
	if req.Code != DefaultCode {
		writeError(w, http.StatusUnauthorized, "wrong verification code")
		return "", false
	}
	return req.PhoneNumber, true
}

func (b *Backend) accountForToken(token string) (*Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.tokens[token]
	if !ok {
		return nil, false
	}
	for _, account := range b.accounts {
		if account.ID == id {
			copied := *account
			return &copied, true
		}
	}
	return nil, false
}

func sessionBody(account *Account, token string) any {
	return struct {
		User  *Account `json:"user"`
		Token string   `json:"token"`
	}{User: account, Token: token}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
