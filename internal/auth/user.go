// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package auth implements the phone-verification session: requesting a
// code, the login-or-register exchange, token restoration on startup,
// and logout. The session persists its token through internal/storage
// so the API client can read it without depending on this package.
package auth

// User is the authenticated account as the backend reports it.
type User struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PhoneNumber       string `json:"phoneNumber"`
	Username          string `json:"username,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`

	// PartyID links the user to their current party, empty when solo.
	PartyID string `json:"partyId,omitempty"`
}
