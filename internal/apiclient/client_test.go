// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/tomtom215/waypoint/internal/storage"
)

// fakeNavigator records navigations for assertion.
type fakeNavigator struct {
	path    string
	targets []string
}

func (n *fakeNavigator) CurrentPath() string      { return n.path }
func (n *fakeNavigator) NavigateTo(target string) { n.targets = append(n.targets, target) }

func newTestTokens(t *testing.T) *storage.Tokens {
	t.Helper()
	store, err := storage.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return storage.NewTokens(store)
}

func newTestClient(t *testing.T, serverURL string, opts Options) *Client {
	t.Helper()
	opts.BaseURL = serverURL
	if opts.Tokens == nil {
		opts.Tokens = newTestTokens(t)
	}
	client, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestTokenInjectionIdempotence(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tokens := newTestTokens(t)
	client := newTestClient(t, server.URL, Options{Tokens: tokens})

	if err := tokens.SetToken("tok-1"); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := client.Get(ctx, "/whoami", nil, nil); err != nil {
			t.Fatalf("get #%d: %v", i+1, err)
		}
	}

	if seen[0] != "Bearer tok-1" || seen[1] != "Bearer tok-1" {
		t.Errorf("headers differ or wrong: %q", seen)
	}

	// Clearing the token drops the header on the next call.
	if err := tokens.ClearToken(); err != nil {
		t.Fatal(err)
	}
	if err := client.Get(ctx, "/whoami", nil, nil); err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if seen[2] != "" {
		t.Errorf("expected no Authorization header after clear, got %q", seen[2])
	}
}

func TestLocationHeaderAttachedWhenFixPresent(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-User-Location")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{
		Location: func() (float64, float64, float64, bool) {
			return 40.7128, -74.006, 12.5, true
		},
	})

	if err := client.Get(context.Background(), "/points", nil, nil); err != nil {
		t.Fatal(err)
	}
	if header != "40.7128,-74.006,12.5" {
		t.Errorf("X-User-Location = %q", header)
	}
}

func TestLocationHeaderOmittedWithoutFix(t *testing.T) {
	var got string
	var present bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-User-Location")
		_, present = r.Header[http.CanonicalHeaderKey("X-User-Location")]
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{
		Location: func() (float64, float64, float64, bool) {
			return 0, 0, 0, false
		},
	})

	if err := client.Get(context.Background(), "/points", nil, nil); err != nil {
		t.Fatal(err)
	}
	if present {
		t.Errorf("header must be absent without a fix, got %q", got)
	}
}

func TestAuthRejectionRedirectsOffAllowList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"expired"}`))
	}))
	defer server.Close()

	tokens := newTestTokens(t)
	if err := tokens.SetToken("stale"); err != nil {
		t.Fatal(err)
	}
	nav := &fakeNavigator{path: "/dashboard"}
	client := newTestClient(t, server.URL, Options{Tokens: tokens, Navigator: nav})

	err := client.Get(context.Background(), "/sonar/whoami", nil, nil)

	// Original promise rejects.
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}

	// Token cleared.
	if _, err := tokens.Token(); !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("token not cleared: %v", err)
	}

	// Exactly one navigation carrying the original path.
	if len(nav.targets) != 1 {
		t.Fatalf("navigations = %v", nav.targets)
	}
	if nav.targets[0] != "/login?from=%2Fdashboard" {
		t.Errorf("redirect target = %q", nav.targets[0])
	}
}

func TestAuthRejectionNoRedirectOnAllowList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tests := []struct {
		name string
		path string
	}{
		{"login path", "/login"},
		{"root path", "/"},
		{"configured path", "/welcome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := &fakeNavigator{path: tt.path}
			client := newTestClient(t, server.URL, Options{
				Navigator:    nav,
				AllowedPaths: map[string]struct{}{"/welcome": {}},
			})

			err := client.Get(context.Background(), "/anything", nil, nil)
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", err)
			}
			if len(nav.targets) != 0 {
				t.Errorf("unexpected navigation: %v", nav.targets)
			}
		})
	}
}

func TestNonAuthErrorsPropagateWithoutInterception(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	tokens := newTestTokens(t)
	if err := tokens.SetToken("tok"); err != nil {
		t.Fatal(err)
	}
	nav := &fakeNavigator{path: "/dashboard"}
	client := newTestClient(t, server.URL, Options{Tokens: tokens, Navigator: nav})

	err := client.Get(context.Background(), "/points", nil, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}

	// 500s are not auth rejections: token stays, no redirect.
	if _, err := tokens.Token(); err != nil {
		t.Errorf("token must survive a 500: %v", err)
	}
	if len(nav.targets) != 0 {
		t.Errorf("unexpected navigation: %v", nav.targets)
	}
}

func TestGetSerializesQueryParameters(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})

	query := url.Values{}
	query.Set("zoneId", "z-9")
	query.Set("limit", "5")
	if err := client.Get(context.Background(), "/points", query, nil); err != nil {
		t.Fatal(err)
	}

	parsed, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Get("zoneId") != "z-9" || parsed.Get("limit") != "5" {
		t.Errorf("query = %q", rawQuery)
	}
}

func TestPostDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"name":"aria"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Options{})

	var out struct {
		Name string `json:"name"`
	}
	if err := client.Post(context.Background(), "/users", map[string]string{"name": "aria"}, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "aria" {
		t.Errorf("decoded name = %q", out.Name)
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", Options{})

	err := client.Get(context.Background(), "/points", nil, nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Errorf("transport failure must not be a StatusError: %v", err)
	}
}
