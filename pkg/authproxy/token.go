// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/oauthgate/oauthgate/pkg/authproxy/crypto"
	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
	"github.com/oauthgate/oauthgate/pkg/logger"
	"github.com/oauthgate/oauthgate/pkg/networking"
)

// tokenRequest is the POST /token body, accepted either form-encoded or as JSON.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
}

// tokenResponse is the successful POST /token response. The access token is
// the upstream token verbatim; resource echoes the RFC 8707 indicator when
// the original request carried one.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
	Resource    string `json:"resource,omitempty"`
}

// TokenHandler handles POST /token requests. It redeems a one-time
// authorization code for the upstream access token, enforcing one-time use
// and PKCE verification.
func (rt *Router) TokenHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	tr, err := parseTokenRequest(req)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if tr.GrantType != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only grant_type=authorization_code is supported")
		return
	}
	if tr.Code == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}
	if tr.CodeVerifier == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_verifier is required")
		return
	}

	// The take consumes the code whatever the remaining checks decide: a
	// code that fails a later check cannot be retried with corrected
	// parameters.
	issued, err := rt.store.TakeAuthorizationCode(ctx, tr.Code)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			logger.Errorw("failed to look up authorization code",
				"error", err.Error(),
			)
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to look up authorization code")
			return
		}
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "invalid or expired authorization code")
		return
	}

	if tr.ClientID != "" && tr.ClientID != issued.ClientID {
		logger.Warnw("token request client_id mismatch",
			"client_id", tr.ClientID,
		)
		writeOAuthError(w, http.StatusBadRequest, "invalid_client", "client_id does not match the authorization request")
		return
	}

	if tr.RedirectURI != "" && tr.RedirectURI != issued.RedirectURI {
		logger.Warnw("token request redirect_uri mismatch",
			"client_id", issued.ClientID,
		)
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match the authorization request")
		return
	}

	if !crypto.VerifyPKCEChallenge(tr.CodeVerifier, issued.PKCEChallenge) {
		logger.Warnw("PKCE verification failed",
			"client_id", issued.ClientID,
		)
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
		return
	}

	logger.Infow("authorization code redeemed",
		"client_id", issued.ClientID,
	)

	resp := tokenResponse{
		AccessToken: issued.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   issued.ExpiresIn,
		Scope:       issued.Scope,
		Resource:    issued.Resource,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorw("failed to encode token response",
			"error", err.Error(),
		)
	}
}

// parseTokenRequest reads the token request from either a form-encoded or a
// JSON body, depending on Content-Type.
func parseTokenRequest(req *http.Request) (*tokenRequest, error) {
	contentType := req.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, networking.ContentTypeJSON) {
		var tr tokenRequest
		body := io.LimitReader(req.Body, networking.DefaultMaxResponseSize)
		if err := json.NewDecoder(body).Decode(&tr); err != nil {
			return nil, err
		}
		return &tr, nil
	}

	if err := req.ParseForm(); err != nil {
		return nil, err
	}
	return &tokenRequest{
		GrantType:    req.PostForm.Get("grant_type"),
		Code:         req.PostForm.Get("code"),
		CodeVerifier: req.PostForm.Get("code_verifier"),
		ClientID:     req.PostForm.Get("client_id"),
		RedirectURI:  req.PostForm.Get("redirect_uri"),
	}, nil
}
