// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package apiclient

import "net/url"

// Navigator abstracts the host shell's notion of "where the user is"
// and the ability to send them somewhere else. Browser-embedded hosts
// back this with window.location; terminal hosts back it with their
// screen router. The 401/403 interceptor is its only consumer.
type Navigator interface {
	// CurrentPath returns the current navigation path, e.g. "/dashboard".
	CurrentPath() string

	// NavigateTo replaces the current location with target.
	NavigateTo(target string)
}

// NopNavigator ignores navigation. Used by headless hosts (batch jobs,
// tests) where an auth rejection should only clear the token.
type NopNavigator struct{}

// CurrentPath always reports the root path, which is allow-listed, so
// the interceptor never attempts a redirect.
func (NopNavigator) CurrentPath() string { return "/" }

// NavigateTo does nothing.
func (NopNavigator) NavigateTo(string) {}

// loginRedirectTarget builds the login URL carrying the interrupted
// path as the return target: /login?from=%2Fdashboard.
func loginRedirectTarget(loginPath, fromPath string) string {
	return loginPath + "?from=" + url.QueryEscape(fromPath)
}

var _ Navigator = NopNavigator{}
