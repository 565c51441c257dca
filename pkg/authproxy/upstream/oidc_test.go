// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"testing"

	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderFromIssuer(t *testing.T) {
	t.Parallel()

	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	cfg := &Config{
		ClientID:    m.Config().ClientID,
		RedirectURI: "https://proxy.example/callback",
	}

	p, err := NewProviderFromIssuer(context.Background(), m.Issuer(), cfg)
	require.NoError(t, err)

	assert.Equal(t, m.AuthorizationEndpoint(), p.config.AuthorizationEndpoint)
	assert.Equal(t, m.TokenEndpoint(), p.config.TokenEndpoint)
}

func TestNewProviderFromIssuer_ExplicitEndpointsWin(t *testing.T) {
	t.Parallel()

	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	cfg := &Config{
		AuthorizationEndpoint: "https://override.example/authorize",
		ClientID:              m.Config().ClientID,
		RedirectURI:           "https://proxy.example/callback",
	}

	p, err := NewProviderFromIssuer(context.Background(), m.Issuer(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example/authorize", p.config.AuthorizationEndpoint)
	assert.Equal(t, m.TokenEndpoint(), p.config.TokenEndpoint)
}

func TestNewProviderFromIssuer_BadIssuer(t *testing.T) {
	t.Parallel()

	_, err := NewProviderFromIssuer(context.Background(), "", &Config{ClientID: "c"})
	assert.Error(t, err)

	_, err = NewProviderFromIssuer(context.Background(), "http://127.0.0.1:1/nothing", &Config{
		ClientID:    "c",
		RedirectURI: "https://proxy.example/callback",
	})
	assert.Error(t, err)
}
