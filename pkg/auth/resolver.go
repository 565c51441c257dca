// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves credentials on inbound requests to a protected
// resource: either a bearer token presented directly or a browser session
// cookie mapping to a stored upstream token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/oauthgate/oauthgate/pkg/authproxy"
	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

// ErrUnauthenticated is returned when a request carries neither a bearer
// token nor a live session.
var ErrUnauthenticated = errors.New("no credentials on request")

// TokenContextKey is the context key under which the resolved upstream
// token is stored for downstream handlers.
type TokenContextKey struct{}

// Resolver extracts a usable upstream access token from an inbound request.
type Resolver struct {
	store state.Store

	// issuer is the proxy's external base URL, used as the realm in
	// WWW-Authenticate challenges.
	issuer string

	// resourceMetadataURL points clients at the RFC 9728 discovery document
	// so they can initiate the authorization flow.
	resourceMetadataURL string
}

// NewResolver creates a Resolver backed by the given session store.
func NewResolver(store state.Store, issuer string) *Resolver {
	issuer = strings.TrimSuffix(issuer, "/")
	return &Resolver{
		store:               store,
		issuer:              issuer,
		resourceMetadataURL: issuer + "/.well-known/oauth-protected-resource",
	}
}

// ResolveToken returns the upstream credential for the request: the bearer
// header value when present, otherwise the token behind the session cookie.
// The token is forwarded as-is; the upstream API is authoritative for
// validating it.
func (v *Resolver) ResolveToken(req *http.Request) (string, error) {
	authHeader := req.Header.Get("Authorization")
	if authHeader != "" {
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return "", fmt.Errorf("%w: malformed Authorization header", ErrUnauthenticated)
		}
		return token, nil
	}

	cookie, err := req.Cookie(authproxy.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrUnauthenticated
	}

	token, err := v.store.GetSession(req.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			logger.Errorw("failed to look up session",
				"error", err.Error(),
			)
		}
		return "", fmt.Errorf("%w: session expired or unknown", ErrUnauthenticated)
	}
	return token, nil
}

// Middleware requires a resolvable credential on every request. On success
// the upstream token is placed in the request context under TokenContextKey;
// otherwise the request gets a 401 with a WWW-Authenticate challenge
// pointing at the proxy's resource metadata, which is what lets an AI client
// discover the authorization flow.
func (v *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token, err := v.ResolveToken(req)
		if err != nil {
			w.Header().Set("WWW-Authenticate", v.buildWWWAuthenticate())
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(req.Context(), TokenContextKey{}, token)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// TokenFromContext returns the upstream token stored by Middleware.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenContextKey{}).(string)
	return token, ok
}

// buildWWWAuthenticate builds an RFC 6750 / RFC 9728 compliant value for the
// WWW-Authenticate header, with realm and resource_metadata.
func (v *Resolver) buildWWWAuthenticate() string {
	var parts []string
	if v.issuer != "" {
		parts = append(parts, fmt.Sprintf(`realm="%s"`, escapeQuotes(v.issuer)))
	}
	if v.resourceMetadataURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, escapeQuotes(v.resourceMetadataURL)))
	}
	return "Bearer " + strings.Join(parts, ", ")
}

// escapeQuotes escapes a string for safe inclusion in a quoted HTTP header
// parameter value.
func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
