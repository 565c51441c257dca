// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oauthgate/oauthgate/pkg/authproxy/crypto"
	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
	"github.com/oauthgate/oauthgate/pkg/authproxy/upstream"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

// CallbackHandler handles GET /callback, the single shared redirect target
// for the upstream provider. The pending record's flow tag decides whether
// this completes an AI-client authorization or a browser login; the two
// branches are otherwise independent and share only the upstream exchange.
func (rt *Router) CallbackHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	query := req.URL.Query()

	code := query.Get("code")
	internalState := query.Get("state")
	errorParam := query.Get("error")
	errorDescription := query.Get("error_description")

	if internalState == "" {
		logger.Warn("callback missing state parameter")
		renderErrorPage(w, http.StatusBadRequest, "Your session has expired or the request is invalid. Please retry from the application that started the login.")
		return
	}

	// Atomic take: the pending record is consumed exactly once, whatever
	// happens afterwards.
	pending, err := rt.store.TakePendingAuthorization(ctx, internalState)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			logger.Errorw("failed to load pending authorization",
				"error", err.Error(),
			)
		}
		renderErrorPage(w, http.StatusBadRequest, "Your session has expired or the request is invalid. Please retry from the application that started the login.")
		return
	}

	switch pending.FlowType {
	case state.FlowTypeBrowser:
		rt.handleBrowserCallback(ctx, w, req, pending, code, errorParam, errorDescription)
	default:
		rt.handleClientCallback(ctx, w, pending, code, errorParam, errorDescription)
	}
}

// handleClientCallback completes the AI-client flow: every outcome, success
// or failure, goes back to the client's own redirect URI with its original
// state, never to an error page the client cannot see.
func (rt *Router) handleClientCallback(
	ctx context.Context,
	w http.ResponseWriter,
	pending *state.PendingAuthorization,
	code, errorParam, errorDescription string,
) {
	if errorParam != "" {
		logger.Warnw("upstream provider returned error",
			"error", errorParam,
			"client_id", pending.ClientID,
		)
		redirectWithError(w, pending.RedirectURI, pending.State, errorParam, errorDescription)
		return
	}

	if code == "" {
		redirectWithError(w, pending.RedirectURI, pending.State, "invalid_request", "missing authorization code")
		return
	}

	tokens, err := rt.upstream.ExchangeCode(ctx, code, pending.UpstreamPKCEVerifier)
	if err != nil {
		logger.Errorw("upstream code exchange failed",
			"client_id", pending.ClientID,
			"error", err.Error(),
		)
		errCode, errDesc := upstreamErrorResponse(err)
		redirectWithError(w, pending.RedirectURI, pending.State, errCode, errDesc)
		return
	}

	ourCode, err := crypto.GenerateToken()
	if err != nil {
		logger.Errorw("failed to generate authorization code",
			"error", err.Error(),
		)
		redirectWithError(w, pending.RedirectURI, pending.State, "server_error", "failed to generate authorization code")
		return
	}

	issued := &state.AuthorizationCode{
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		ClientID:      pending.ClientID,
		RedirectURI:   pending.RedirectURI,
		PKCEChallenge: pending.PKCEChallenge,
		PKCEMethod:    pending.PKCEMethod,
		Resource:      pending.Resource,
		Scope:         pending.Scope,
		ExpiresIn:     tokens.ExpiresIn,
		CreatedAt:     time.Now(),
	}

	if err := rt.store.PutAuthorizationCode(ctx, ourCode, issued, rt.config.AuthorizationCodeTTL); err != nil {
		logger.Errorw("failed to store authorization code",
			"error", err.Error(),
		)
		redirectWithError(w, pending.RedirectURI, pending.State, "server_error", "failed to store authorization code")
		return
	}

	logger.Infow("authorization successful, redirecting to client",
		"client_id", pending.ClientID,
	)

	w.Header().Set("Location", buildCallbackURL(pending.RedirectURI, ourCode, pending.State))
	w.WriteHeader(http.StatusFound)
}

// handleBrowserCallback completes the browser login flow: exchange the
// upstream code, store a session, set the cookie, render a page. There is no
// third party waiting, so failures render directly.
func (rt *Router) handleBrowserCallback(
	ctx context.Context,
	w http.ResponseWriter,
	req *http.Request,
	pending *state.PendingAuthorization,
	code, errorParam, errorDescription string,
) {
	if errorParam != "" {
		logger.Warnw("upstream provider returned error during browser login",
			"error", errorParam,
		)
		msg := "Login failed: " + errorParam
		if errorDescription != "" {
			msg = fmt.Sprintf("Login failed: %s (%s)", errorParam, errorDescription)
		}
		renderErrorPage(w, http.StatusBadRequest, msg)
		return
	}

	if code == "" {
		renderErrorPage(w, http.StatusBadRequest, "Login failed: the identity provider returned no authorization code.")
		return
	}

	tokens, err := rt.upstream.ExchangeCode(ctx, code, pending.UpstreamPKCEVerifier)
	if err != nil {
		logger.Errorw("upstream code exchange failed during browser login",
			"error", err.Error(),
		)
		renderErrorPage(w, http.StatusBadRequest, "Login failed: could not complete the exchange with the identity provider. Please retry.")
		return
	}

	sessionID := uuid.NewString()

	sessionTTL := rt.config.SessionTTL
	if tokens.ExpiresIn > 0 {
		sessionTTL = time.Duration(tokens.ExpiresIn) * time.Second
	}

	if err := rt.store.PutSession(ctx, sessionID, tokens.AccessToken, sessionTTL); err != nil {
		logger.Errorw("failed to store browser session",
			"error", err.Error(),
		)
		renderErrorPage(w, http.StatusInternalServerError, "Login failed: internal error.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	logger.Infow("browser login successful",
		"session_ttl", sessionTTL.String(),
	)

	renderSuccessPage(w, req)
}

// upstreamErrorResponse maps an upstream exchange failure to the RFC 6749
// error to forward to the client: the upstream's own code when it named one,
// server_error otherwise.
func upstreamErrorResponse(err error) (errorCode, description string) {
	var upstreamErr *upstream.Error
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Code, upstreamErr.Description
	}
	return "server_error", "failed to exchange authorization code"
}
