// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package geo

import "strings"

// Environment describes the host platform, used to pick the right
// permission-remediation instructions when location access is denied.
type Environment struct {
	// OS is the host operating system, e.g. "android", "ios", "macos",
	// "windows", "linux". Matching is case-insensitive.
	OS string

	// Browser is the embedding browser, e.g. "chrome", "firefox",
	// "safari". Empty for native hosts.
	Browser string

	// SecureContext is false when the host page is served over plain
	// HTTP. Position APIs refuse to run at all in that case, which
	// looks like a denial but has a different fix.
	SecureContext bool
}

// RemediationSteps returns user-facing instructions for re-enabling
// location access on the given platform. The insecure-context case is
// checked first: no permission toggle helps until the page is on HTTPS.
func RemediationSteps(env Environment) string {
	if !env.SecureContext {
		return "Location access requires a secure connection. " +
			"Open this page over HTTPS and try again."
	}

	os := strings.ToLower(env.OS)
	browser := strings.ToLower(env.Browser)

	switch {
	case os == "android" && browser == "chrome":
		return "Tap the lock icon next to the address bar, choose Permissions, " +
			"and set Location to Allow. If Location is greyed out, enable it for Chrome " +
			"under Android Settings > Apps > Chrome > Permissions first."
	case os == "ios":
		return "Open Settings > Privacy & Security > Location Services, make sure " +
			"Location Services is on, then find your browser in the list and set it " +
			"to While Using the App. Reload the page afterwards."
	case os == "macos":
		return "Open System Settings > Privacy & Security > Location Services and " +
			"enable access for your browser, then reload the page."
	case browser == "chrome":
		return "Click the lock icon next to the address bar, open Site settings, " +
			"and change Location from Block to Allow, then reload the page."
	case browser == "firefox":
		return "Click the permissions icon next to the address bar and clear the " +
			"blocked Location permission, then reload the page and allow access " +
			"when prompted."
	default:
		return "Location access is blocked. Enable location permission for this " +
			"site in your browser or system settings, then reload the page."
	}
}
