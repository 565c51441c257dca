// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

// Package authproxy implements a protocol-translating OAuth 2.0 proxy. It
// presents a same-origin authorization server surface (authorize, token,
// dynamic client registration, discovery) to AI-agent clients while the
// upstream identity provider performs the actual user authentication. The
// proxy never mints its own access tokens: it issues one-time authorization
// codes that redeem for the upstream token verbatim.
package authproxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
)

const (
	// CallbackPath is the shared redirect target for both the AI-client and
	// the browser login flows.
	CallbackPath = "/callback"

	// DefaultScope is requested when an authorization request carries no
	// scope parameter.
	DefaultScope = "read write"

	// SessionCookieName carries the browser session ID.
	SessionCookieName = "session"
)

// Config holds the proxy's externally visible identity and record lifetimes.
type Config struct {
	// Issuer is the proxy's external base URL, e.g. "https://auth.example.com".
	// All advertised endpoints live under it.
	Issuer string

	// Scopes advertised in the discovery documents.
	ScopesSupported []string

	// PendingAuthorizationTTL bounds how long a user can sit at the upstream
	// login page before the flow expires.
	PendingAuthorizationTTL time.Duration

	// AuthorizationCodeTTL bounds how long an issued one-time code stays
	// redeemable.
	AuthorizationCodeTTL time.Duration

	// SessionTTL is the fallback browser session lifetime when the upstream
	// token response carries no expires_in.
	SessionTTL time.Duration
}

// Validate checks the config and fills in defaults.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("issuer is required")
	}
	u, err := url.Parse(c.Issuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid issuer URL: %q", c.Issuer)
	}
	c.Issuer = strings.TrimSuffix(c.Issuer, "/")

	if c.PendingAuthorizationTTL <= 0 {
		c.PendingAuthorizationTTL = state.DefaultPendingAuthorizationTTL
	}
	if c.AuthorizationCodeTTL <= 0 {
		c.AuthorizationCodeTTL = state.DefaultAuthorizationCodeTTL
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = state.DefaultSessionTTL
	}
	if len(c.ScopesSupported) == 0 {
		c.ScopesSupported = strings.Fields(DefaultScope)
	}
	return nil
}

// CallbackURL is the absolute redirect URI registered with the upstream
// provider.
func (c *Config) CallbackURL() string {
	return c.Issuer + CallbackPath
}
