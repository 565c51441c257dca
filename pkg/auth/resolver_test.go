// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthgate/oauthgate/pkg/authproxy"
	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
)

func newTestResolver(t *testing.T) (*Resolver, state.Store) {
	t.Helper()

	store := state.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewResolver(store, "https://proxy.example/"), store
}

func TestResolveToken_BearerHeader(t *testing.T) {
	t.Parallel()

	v, _ := newTestResolver(t)

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", "Bearer some-opaque-token")

	token, err := v.ResolveToken(req)
	require.NoError(t, err)
	assert.Equal(t, "some-opaque-token", token)
}

func TestResolveToken_BearerHeaderWinsOverCookie(t *testing.T) {
	t.Parallel()

	v, store := newTestResolver(t)
	require.NoError(t, store.PutSession(context.Background(), "sess1", "cookie-token", time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: authproxy.SessionCookieName, Value: "sess1"})

	token, err := v.ResolveToken(req)
	require.NoError(t, err)
	assert.Equal(t, "header-token", token)
}

func TestResolveToken_SessionCookie(t *testing.T) {
	t.Parallel()

	v, store := newTestResolver(t)
	require.NoError(t, store.PutSession(context.Background(), "sess1", "upstream-token", time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.AddCookie(&http.Cookie{Name: authproxy.SessionCookieName, Value: "sess1"})

	token, err := v.ResolveToken(req)
	require.NoError(t, err)
	assert.Equal(t, "upstream-token", token)
}

func TestResolveToken_Failures(t *testing.T) {
	t.Parallel()

	v, _ := newTestResolver(t)

	// No credentials at all.
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	_, err := v.ResolveToken(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Non-bearer Authorization header.
	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = v.ResolveToken(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Bearer prefix with nothing behind it.
	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", "Bearer ")
	_, err = v.ResolveToken(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Cookie naming an unknown session.
	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.AddCookie(&http.Cookie{Name: authproxy.SessionCookieName, Value: "expired"})
	_, err = v.ResolveToken(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	v, store := newTestResolver(t)
	require.NoError(t, store.PutSession(context.Background(), "sess1", "upstream-token", time.Minute))

	var gotToken string
	protected := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken, _ = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Authenticated via cookie.
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.AddCookie(&http.Cookie{Name: authproxy.SessionCookieName, Value: "sess1"})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upstream-token", gotToken)

	// Unauthenticated: 401 with a challenge pointing at resource metadata.
	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	challenge := rec.Header().Get("WWW-Authenticate")
	assert.Contains(t, challenge, `realm="https://proxy.example"`)
	assert.Contains(t, challenge, `resource_metadata="https://proxy.example/.well-known/oauth-protected-resource"`)
}
