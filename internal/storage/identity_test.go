// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package storage

import "testing"

// exactlyOne asserts the dual-mode identity invariant.
func exactlyOne(t *testing.T, id Identity) {
	t.Helper()
	if (id.UserID == "") == (id.EphemeralUserID == "") {
		t.Fatalf("identity invariant violated: %+v", id)
	}
}

func TestIdentityMintsEphemeralOnce(t *testing.T) {
	mgr := NewIdentityManager(newTestStore(t))

	first, err := mgr.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	exactlyOne(t, first)
	if first.Authenticated() {
		t.Fatal("fresh device must not be authenticated")
	}

	second, err := mgr.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if second.EphemeralUserID != first.EphemeralUserID {
		t.Errorf("ephemeral id not stable: %q != %q", second.EphemeralUserID, first.EphemeralUserID)
	}
}

func TestIdentityPromoteAndDemote(t *testing.T) {
	mgr := NewIdentityManager(newTestStore(t))

	before, err := mgr.Current()
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.Promote("user-42"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	id, err := mgr.Current()
	if err != nil {
		t.Fatal(err)
	}
	exactlyOne(t, id)
	if !id.Authenticated() || id.UserID != "user-42" {
		t.Errorf("after promote: %+v", id)
	}

	demoted, err := mgr.Demote()
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	exactlyOne(t, demoted)
	if demoted.Authenticated() {
		t.Errorf("after demote: %+v", demoted)
	}
	if demoted.EphemeralUserID == before.EphemeralUserID {
		t.Error("demote must mint a fresh ephemeral id")
	}
}

func TestIdentityPromoteRejectsEmpty(t *testing.T) {
	mgr := NewIdentityManager(newTestStore(t))
	if err := mgr.Promote(""); err == nil {
		t.Error("expected error for empty user id")
	}
}
