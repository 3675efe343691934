// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package geo

import (
	"strings"
	"testing"
)

func TestRemediationSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		env      Environment
		contains string
	}{
		{
			name:     "insecure context trumps platform",
			env:      Environment{OS: "android", Browser: "chrome", SecureContext: false},
			contains: "HTTPS",
		},
		{
			name:     "android chrome",
			env:      Environment{OS: "Android", Browser: "Chrome", SecureContext: true},
			contains: "Android Settings",
		},
		{
			name:     "ios any browser",
			env:      Environment{OS: "iOS", Browser: "safari", SecureContext: true},
			contains: "Location Services",
		},
		{
			name:     "macos",
			env:      Environment{OS: "macOS", Browser: "safari", SecureContext: true},
			contains: "System Settings",
		},
		{
			name:     "desktop chrome",
			env:      Environment{OS: "windows", Browser: "chrome", SecureContext: true},
			contains: "Site settings",
		},
		{
			name:     "desktop firefox",
			env:      Environment{OS: "linux", Browser: "firefox", SecureContext: true},
			contains: "permissions icon",
		},
		{
			name:     "unknown platform gets generic guidance",
			env:      Environment{OS: "haiku", Browser: "netsurf", SecureContext: true},
			contains: "blocked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RemediationSteps(tt.env)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("guidance %q does not mention %q", got, tt.contains)
			}
		})
	}
}
