// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

// Package upstream handles communication with the upstream identity
// provider: building authorization URLs, exchanging authorization codes for
// tokens, and relaying dynamic client registration requests.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config contains the proxy's own registration with the upstream provider.
type Config struct {
	// AuthorizationEndpoint is the upstream authorize URL.
	AuthorizationEndpoint string

	// TokenEndpoint is the upstream token URL.
	TokenEndpoint string

	// RegistrationEndpoint is the upstream DCR URL (optional).
	RegistrationEndpoint string

	// ClientID is the proxy's registered client ID with the upstream provider.
	ClientID string

	// ClientSecret is the proxy's client secret (optional for public clients).
	ClientSecret string

	// RedirectURI is the proxy's callback URL registered with the upstream
	// provider. Both flows share it.
	RedirectURI string

	// Scopes are the scopes requested from the upstream provider.
	Scopes []string
}

// Validate checks that the config has all required fields and valid values.
func (c *Config) Validate() error {
	if c.AuthorizationEndpoint == "" {
		return errors.New("authorization endpoint is required")
	}
	if c.TokenEndpoint == "" {
		return errors.New("token endpoint is required")
	}
	if c.ClientID == "" {
		return errors.New("client ID is required")
	}
	if c.RedirectURI == "" {
		return errors.New("redirect URI is required")
	}
	for _, endpoint := range []string{c.AuthorizationEndpoint, c.TokenEndpoint} {
		u, err := url.Parse(endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL: %q", endpoint)
		}
	}
	return nil
}

// Tokens represents the tokens obtained from the upstream identity provider.
// The access token is opaque to the proxy and passed through verbatim.
type Tokens struct {
	// AccessToken is the access token from the upstream provider.
	AccessToken string

	// RefreshToken is the refresh token from the upstream provider (if provided).
	RefreshToken string

	// IDToken is the ID token from the upstream provider (for OIDC).
	IDToken string

	// ExpiresIn is the access token lifetime in seconds as reported by the
	// upstream provider; zero when the provider omitted it.
	ExpiresIn int64

	// Scope is the granted scope string, if the provider reported one.
	Scope string
}

// Error is an RFC 6749 error returned by the upstream token endpoint. The
// callback handler propagates Code to the waiting client instead of a
// generic server_error when the upstream names a cause.
type Error struct {
	// Code is the RFC 6749 error code, e.g. "invalid_grant".
	Code string

	// Description is the human-readable error_description, if any.
	Description string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("upstream error: %s", e.Code)
	}
	return fmt.Sprintf("upstream error: %s (%s)", e.Code, e.Description)
}

// AuthorizationOption configures authorization URL generation.
type AuthorizationOption func(*authorizationOptions)

type authorizationOptions struct {
	additionalParams map[string]string
}

// WithAdditionalParams adds custom parameters to the authorization URL,
// e.g. a forwarded "prompt" value.
func WithAdditionalParams(params map[string]string) AuthorizationOption {
	return func(o *authorizationOptions) {
		if o.additionalParams == nil {
			o.additionalParams = make(map[string]string)
		}
		for k, v := range params {
			o.additionalParams[k] = v
		}
	}
}

// Provider handles communication with the upstream identity provider.
type Provider interface {
	// AuthorizationURL builds the URL to redirect the user to the upstream
	// provider. state is the proxy's internal state for callback
	// correlation; codeChallenge is the proxy's own PKCE challenge.
	AuthorizationURL(state, codeChallenge string, opts ...AuthorizationOption) (string, error)

	// ExchangeCode exchanges an authorization code for tokens with the
	// upstream provider using the proxy's own PKCE verifier.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*Tokens, error)

	// RegisterClient relays an RFC 7591 registration document to the
	// upstream registration endpoint and returns the upstream's status
	// code and response body unchanged.
	RegisterClient(ctx context.Context, body []byte) (int, []byte, error)
}

// joinScopes joins scopes into the space-separated wire format.
func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
