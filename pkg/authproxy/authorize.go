// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"net/http"
	"time"

	"github.com/oauthgate/oauthgate/pkg/authproxy/crypto"
	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
	"github.com/oauthgate/oauthgate/pkg/authproxy/upstream"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

// AuthorizeHandler handles GET /authorize requests from AI clients.
// It validates the authorization request, persists a pending-authorization
// record keyed by a fresh internal state, and redirects to the upstream
// provider with the proxy's own PKCE challenge. The client's challenge is
// only held for later verification at the proxy's token endpoint.
func (rt *Router) AuthorizeHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	query := req.URL.Query()

	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	responseType := query.Get("response_type")
	clientState := query.Get("state")
	codeChallenge := query.Get("code_challenge")
	codeChallengeMethod := query.Get("code_challenge_method")
	scope := query.Get("scope")
	resource := query.Get("resource")
	prompt := query.Get("prompt")

	// Validation order is load-bearing: clients probing the endpoint get the
	// first failing check's error code.
	if clientID == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "client_id is required")
		return
	}
	if redirectURI == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is required")
		return
	}
	if responseType != "code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_response_type", "only response_type=code is supported")
		return
	}
	if clientState == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "state is required")
		return
	}
	if codeChallenge == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_challenge is required")
		return
	}
	if codeChallengeMethod == "" {
		codeChallengeMethod = crypto.PKCEChallengeMethodS256
	}
	if codeChallengeMethod != crypto.PKCEChallengeMethodS256 {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_challenge_method must be S256")
		return
	}

	if scope == "" {
		scope = DefaultScope
	}

	// Generate the internal state for callback correlation and the proxy's
	// own PKCE pair for its exchange with the upstream provider, independent
	// of the client's pair.
	internalState, err := crypto.GenerateToken()
	if err != nil {
		logger.Errorw("failed to generate internal state",
			"error", err.Error(),
		)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to generate authorization state")
		return
	}
	upstreamVerifier := crypto.GeneratePKCEVerifier()
	upstreamChallenge := crypto.ComputePKCEChallenge(upstreamVerifier)

	pending := &state.PendingAuthorization{
		FlowType:             state.FlowTypeClient,
		ClientID:             clientID,
		RedirectURI:          redirectURI,
		State:                clientState,
		PKCEChallenge:        codeChallenge,
		PKCEMethod:           codeChallengeMethod,
		Scope:                scope,
		Resource:             resource,
		UpstreamPKCEVerifier: upstreamVerifier,
		CreatedAt:            time.Now(),
	}

	if err := rt.store.PutPendingAuthorization(ctx, internalState, pending, rt.config.PendingAuthorizationTTL); err != nil {
		logger.Errorw("failed to store pending authorization",
			"client_id", clientID,
			"error", err.Error(),
		)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to store authorization request")
		return
	}

	var opts []upstream.AuthorizationOption
	if prompt != "" {
		opts = append(opts, upstream.WithAdditionalParams(map[string]string{"prompt": prompt}))
	}

	upstreamURL, err := rt.upstream.AuthorizationURL(internalState, upstreamChallenge, opts...)
	if err != nil {
		logger.Errorw("failed to build upstream authorization URL",
			"error", err.Error(),
		)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to build authorization URL")
		return
	}

	logger.Infow("redirecting to upstream provider",
		"client_id", clientID,
		"has_resource", resource != "",
	)

	http.Redirect(w, req, upstreamURL, http.StatusFound)
}
