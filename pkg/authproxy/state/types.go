// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

// Package state provides the ephemeral key/value storage used to bridge the
// OAuth proxy's flows across external redirects. Every record is short-lived
// by construction: it exists only between two HTTP round trips and is never
// the system of record for anything.
package state

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultPendingAuthorizationTTL is the TTL for pending authorization records.
	DefaultPendingAuthorizationTTL = 10 * time.Minute

	// DefaultAuthorizationCodeTTL is the TTL for issued-but-unredeemed
	// authorization codes.
	DefaultAuthorizationCodeTTL = 10 * time.Minute

	// DefaultSessionTTL is the fallback TTL for browser sessions when the
	// upstream token response carries no expires_in.
	DefaultSessionTTL = time.Hour
)

// ErrNotFound is returned when a record does not exist or has expired.
var ErrNotFound = errors.New("record not found")

// FlowType discriminates which flow created a pending authorization, so the
// shared callback endpoint can branch without probing multiple namespaces.
type FlowType string

const (
	// FlowTypeClient marks an AI-client authorization flow: the callback
	// must mint a one-time code and redirect back to the client.
	FlowTypeClient FlowType = "client"

	// FlowTypeBrowser marks a human browser login: the callback must create
	// a session cookie and render a page.
	FlowTypeBrowser FlowType = "browser"
)

// PendingAuthorization tracks one in-flight authorization request while the
// user authenticates with the upstream provider. It is keyed by the proxy's
// internal state token and consumed exactly once by the callback handler.
type PendingAuthorization struct {
	// FlowType tells the callback which flow created this record.
	FlowType FlowType

	// ClientID is the OAuth client that initiated the request (client flow only).
	ClientID string

	// RedirectURI is where the callback sends the user afterwards: the AI
	// client's endpoint for the client flow, unused for the browser flow.
	RedirectURI string

	// State is the client's original state parameter, echoed back verbatim
	// on both success and error paths (client flow only).
	State string

	// PKCEChallenge is the client's PKCE code challenge, held for later
	// verification at the proxy's own token endpoint (client flow only).
	PKCEChallenge string

	// PKCEMethod is the client's PKCE challenge method (always "S256").
	PKCEMethod string

	// Scope is the requested scope string, passed through unevaluated.
	Scope string

	// Resource is the optional RFC 8707 resource indicator.
	Resource string

	// UpstreamPKCEVerifier is the proxy's own PKCE verifier for its exchange
	// with the upstream provider, independent of the client's PKCE pair.
	UpstreamPKCEVerifier string

	// CreatedAt is when the pending authorization was created.
	CreatedAt time.Time
}

// AuthorizationCode is the record behind a one-time code handed to an AI
// client after a successful upstream exchange. It is deleted on first
// lookup at the token endpoint, which is the replay-prevention property.
type AuthorizationCode struct {
	// AccessToken is the opaque upstream access token, returned verbatim
	// when the code is redeemed.
	AccessToken string

	// RefreshToken is the upstream refresh token, if the upstream issued one.
	RefreshToken string

	// ClientID is the client the code was issued to.
	ClientID string

	// RedirectURI is the redirect URI the code was issued for.
	RedirectURI string

	// PKCEChallenge is the client's challenge, verified at redemption.
	PKCEChallenge string

	// PKCEMethod is the client's PKCE challenge method.
	PKCEMethod string

	// Resource is the optional RFC 8707 resource indicator, echoed back in
	// the token response.
	Resource string

	// Scope is the scope string echoed back in the token response.
	Scope string

	// ExpiresIn is the upstream token lifetime in seconds.
	ExpiresIn int64

	// CreatedAt is when the code was issued.
	CreatedAt time.Time
}

// Store is the ephemeral state store behind the proxy. Implementations must
// provide per-key atomicity; Take operations consume the record so that a
// given internal state or issued code can never be redeemed twice.
type Store interface {
	// PutPendingAuthorization stores a pending authorization keyed by the
	// proxy's internal state token.
	PutPendingAuthorization(ctx context.Context, state string, pending *PendingAuthorization, ttl time.Duration) error

	// TakePendingAuthorization atomically retrieves and deletes a pending
	// authorization. Returns ErrNotFound if absent or expired.
	TakePendingAuthorization(ctx context.Context, state string) (*PendingAuthorization, error)

	// PutAuthorizationCode stores an issued authorization code.
	PutAuthorizationCode(ctx context.Context, code string, issued *AuthorizationCode, ttl time.Duration) error

	// TakeAuthorizationCode atomically retrieves and deletes an issued
	// code. Returns ErrNotFound if absent, expired, or already redeemed.
	TakeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// PutSession stores a browser session mapping the session ID to the
	// bare upstream access token.
	PutSession(ctx context.Context, sessionID, accessToken string, ttl time.Duration) error

	// GetSession retrieves the access token for a browser session.
	// Returns ErrNotFound if absent or expired.
	GetSession(ctx context.Context, sessionID string) (string, error)

	// DeleteSession removes a browser session. Deleting a missing session
	// is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// Health checks that the backend is reachable.
	Health(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
