// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/oauthgate/oauthgate/pkg/logger"
)

// discoveryClaims carries the discovery fields not exposed through the
// go-oidc Endpoint accessor.
type discoveryClaims struct {
	RegistrationEndpoint string `json:"registration_endpoint"`
}

// NewProviderFromIssuer creates a provider by discovering the upstream's
// endpoints from its OIDC issuer ({issuer}/.well-known/openid-configuration).
// Any endpoint already set on the config takes precedence over discovery,
// which lets deployments override individual URLs.
func NewProviderFromIssuer(ctx context.Context, issuer string, config *Config, opts ...OAuth2ProviderOption) (*OAuth2Provider, error) {
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("OIDC discovery failed for %q: %w", issuer, err)
	}

	endpoint := provider.Endpoint()
	if config.AuthorizationEndpoint == "" {
		config.AuthorizationEndpoint = endpoint.AuthURL
	}
	if config.TokenEndpoint == "" {
		config.TokenEndpoint = endpoint.TokenURL
	}

	if config.RegistrationEndpoint == "" {
		var claims discoveryClaims
		if err := provider.Claims(&claims); err == nil {
			config.RegistrationEndpoint = claims.RegistrationEndpoint
		}
	}

	logger.Infow("discovered upstream endpoints",
		"issuer", issuer,
		"authorization_endpoint", config.AuthorizationEndpoint,
		"token_endpoint", config.TokenEndpoint,
		"has_registration_endpoint", config.RegistrationEndpoint != "",
	)

	return NewOAuth2Provider(config, opts...)
}
