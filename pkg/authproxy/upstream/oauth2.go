// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oauthgate/oauthgate/pkg/logger"
	"github.com/oauthgate/oauthgate/pkg/networking"
)

// Compile-time interface compliance check.
var _ Provider = (*OAuth2Provider)(nil)

// OAuth2Provider implements Provider against explicit upstream endpoints.
// Use NewProviderFromIssuer when the upstream supports OIDC discovery.
type OAuth2Provider struct {
	config     *Config
	httpClient networking.HTTPClient
}

// OAuth2ProviderOption configures an OAuth2Provider.
type OAuth2ProviderOption func(*OAuth2Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client networking.HTTPClient) OAuth2ProviderOption {
	return func(p *OAuth2Provider) {
		p.httpClient = client
	}
}

// NewOAuth2Provider creates a provider from explicit endpoint configuration.
func NewOAuth2Provider(config *Config, opts ...OAuth2ProviderOption) (*OAuth2Provider, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger.Infow("creating upstream OAuth2 provider",
		"authorization_endpoint", config.AuthorizationEndpoint,
		"token_endpoint", config.TokenEndpoint,
		"client_id", config.ClientID,
	)

	p := &OAuth2Provider{
		config:     config,
		httpClient: networking.NewHTTPClient(networking.DefaultUpstreamTimeout),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// AuthorizationURL builds the URL to redirect the user to the upstream provider.
func (p *OAuth2Provider) AuthorizationURL(state, codeChallenge string, opts ...AuthorizationOption) (string, error) {
	if state == "" {
		return "", errors.New("state parameter is required")
	}
	if codeChallenge == "" {
		return "", errors.New("code challenge is required")
	}

	authOpts := &authorizationOptions{}
	for _, opt := range opts {
		opt(authOpts)
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {p.config.ClientID},
		"redirect_uri":          {p.config.RedirectURI},
		"state":                 {state},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
	}

	if len(p.config.Scopes) > 0 {
		params.Set("scope", joinScopes(p.config.Scopes))
	}

	for k, v := range authOpts.additionalParams {
		params.Set(k, v)
	}

	return p.config.AuthorizationEndpoint + "?" + params.Encode(), nil
}

// ExchangeCode exchanges an authorization code for tokens with the upstream provider.
func (p *OAuth2Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Tokens, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	logger.Debugw("exchanging authorization code with upstream",
		"token_endpoint", p.config.TokenEndpoint,
		"has_pkce_verifier", codeVerifier != "",
	)

	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {p.config.RedirectURI},
		"client_id":    {p.config.ClientID},
	}
	if p.config.ClientSecret != "" {
		params.Set("client_secret", p.config.ClientSecret)
	}
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.config.TokenEndpoint,
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", networking.ContentTypeFormURLEncoded)
	req.Header.Set("Accept", networking.ContentTypeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	tokens, err := parseTokenResponse(body, resp.StatusCode)
	if err != nil {
		return nil, err
	}

	logger.Infow("authorization code exchange successful",
		"has_refresh_token", tokens.RefreshToken != "",
		"expires_in", tokens.ExpiresIn,
	)

	return tokens, nil
}

// RegisterClient relays a DCR document to the upstream registration endpoint.
// The upstream's status code and body are returned unchanged; the proxy
// keeps no local registration state.
func (p *OAuth2Provider) RegisterClient(ctx context.Context, body []byte) (int, []byte, error) {
	if p.config.RegistrationEndpoint == "" {
		return 0, nil, errors.New("upstream registration endpoint not configured")
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.config.RegistrationEndpoint,
		bytes.NewReader(body),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", networking.ContentTypeJSON)
	req.Header.Set("Accept", networking.ContentTypeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read registration response: %w", err)
	}

	logger.Debugw("relayed client registration to upstream",
		"status", resp.StatusCode,
	)

	return resp.StatusCode, respBody, nil
}

// tokenResponse is the upstream token endpoint's JSON shape, covering both
// the success and the RFC 6749 error case.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	IDToken          string `json:"id_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// parseTokenResponse parses an upstream token response. Error responses with
// an RFC 6749 error field become *Error so callers can propagate the
// upstream's own error code; anything else malformed becomes a plain error.
func parseTokenResponse(body []byte, statusCode int) (*Tokens, error) {
	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed token response (%w)", networking.NewHTTPError(statusCode, body))
	}

	if parsed.ErrorCode != "" {
		return nil, &Error{Code: parsed.ErrorCode, Description: parsed.ErrorDescription}
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %w", networking.NewHTTPError(statusCode, body))
	}
	if parsed.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	return &Tokens{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		IDToken:      parsed.IDToken,
		ExpiresIn:    parsed.ExpiresIn,
		Scope:        parsed.Scope,
	}, nil
}
