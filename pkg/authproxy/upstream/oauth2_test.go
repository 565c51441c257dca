// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(tokenEndpoint, registrationEndpoint string) *Config {
	return &Config{
		AuthorizationEndpoint: "https://idp.example/authorize",
		TokenEndpoint:         tokenEndpoint,
		RegistrationEndpoint:  registrationEndpoint,
		ClientID:              "proxy-client",
		ClientSecret:          "proxy-secret",
		RedirectURI:           "https://proxy.example/callback",
		Scopes:                []string{"openid", "email"},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := testConfig("https://idp.example/token", "")
	require.NoError(t, cfg.Validate())

	missing := *cfg
	missing.ClientID = ""
	assert.Error(t, missing.Validate())

	missing = *cfg
	missing.TokenEndpoint = ""
	assert.Error(t, missing.Validate())

	bad := *cfg
	bad.AuthorizationEndpoint = "not a url"
	assert.Error(t, bad.Validate())
}

func TestAuthorizationURL(t *testing.T) {
	t.Parallel()

	p, err := NewOAuth2Provider(testConfig("https://idp.example/token", ""))
	require.NoError(t, err)

	rawURL, err := p.AuthorizationURL("internal-state", "challenge123",
		WithAdditionalParams(map[string]string{"prompt": "consent"}))
	require.NoError(t, err)

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "proxy-client", q.Get("client_id"))
	assert.Equal(t, "https://proxy.example/callback", q.Get("redirect_uri"))
	assert.Equal(t, "internal-state", q.Get("state"))
	assert.Equal(t, "challenge123", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "openid email", q.Get("scope"))
	assert.Equal(t, "consent", q.Get("prompt"))
}

func TestAuthorizationURL_RequiresStateAndChallenge(t *testing.T) {
	t.Parallel()

	p, err := NewOAuth2Provider(testConfig("https://idp.example/token", ""))
	require.NoError(t, err)

	_, err = p.AuthorizationURL("", "challenge")
	assert.Error(t, err)

	_, err = p.AuthorizationURL("state", "")
	assert.Error(t, err)
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "upstream-token",
			"refresh_token": "upstream-refresh",
			"expires_in":    3600,
			"scope":         "openid email",
		})
	}))
	defer srv.Close()

	p, err := NewOAuth2Provider(testConfig(srv.URL, ""))
	require.NoError(t, err)

	tokens, err := p.ExchangeCode(context.Background(), "UPCODE", "verifier123")
	require.NoError(t, err)

	assert.Equal(t, "upstream-token", tokens.AccessToken)
	assert.Equal(t, "upstream-refresh", tokens.RefreshToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)
	assert.Equal(t, "openid email", tokens.Scope)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "UPCODE", gotForm.Get("code"))
	assert.Equal(t, "proxy-client", gotForm.Get("client_id"))
	assert.Equal(t, "proxy-secret", gotForm.Get("client_secret"))
	assert.Equal(t, "https://proxy.example/callback", gotForm.Get("redirect_uri"))
	assert.Equal(t, "verifier123", gotForm.Get("code_verifier"))
}

func TestExchangeCode_UpstreamOAuthError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "code expired",
		})
	}))
	defer srv.Close()

	p, err := NewOAuth2Provider(testConfig(srv.URL, ""))
	require.NoError(t, err)

	_, err = p.ExchangeCode(context.Background(), "UPCODE", "verifier123")
	require.Error(t, err)

	var upstreamErr *Error
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "invalid_grant", upstreamErr.Code)
	assert.Equal(t, "code expired", upstreamErr.Description)
}

func TestExchangeCode_MalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	p, err := NewOAuth2Provider(testConfig(srv.URL, ""))
	require.NoError(t, err)

	_, err = p.ExchangeCode(context.Background(), "UPCODE", "v")
	assert.Error(t, err)
}

func TestExchangeCode_MissingAccessToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expires_in": 3600}`))
	}))
	defer srv.Close()

	p, err := NewOAuth2Provider(testConfig(srv.URL, ""))
	require.NoError(t, err)

	_, err = p.ExchangeCode(context.Background(), "UPCODE", "v")
	assert.ErrorContains(t, err, "access_token")
}

func TestRegisterClient_Passthrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make(map[string]any)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "my-agent", body["client_name"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"client_id":"issued-by-upstream"}`))
	}))
	defer srv.Close()

	p, err := NewOAuth2Provider(testConfig("https://idp.example/token", srv.URL))
	require.NoError(t, err)

	status, body, err := p.RegisterClient(context.Background(), []byte(`{"client_name":"my-agent"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"client_id":"issued-by-upstream"}`, string(body))
}

func TestRegisterClient_NoEndpointConfigured(t *testing.T) {
	t.Parallel()

	p, err := NewOAuth2Provider(testConfig("https://idp.example/token", ""))
	require.NoError(t, err)

	_, _, err = p.RegisterClient(context.Background(), []byte(`{}`))
	assert.Error(t, err)
}
