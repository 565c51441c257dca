// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/oauthgate/oauthgate/pkg/authproxy/crypto"
	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

// LoginHandler handles GET /auth/login, the entry point for human browser
// logins. Unlike /authorize there is no third-party client: the pending
// record carries only the proxy's own PKCE verifier and the browser flow tag
// that routes the shared callback.
func (rt *Router) LoginHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	browserState, err := crypto.GenerateToken()
	if err != nil {
		logger.Errorw("failed to generate login state",
			"error", err.Error(),
		)
		renderErrorPage(w, http.StatusInternalServerError, "Login failed: internal error.")
		return
	}
	verifier := crypto.GeneratePKCEVerifier()
	challenge := crypto.ComputePKCEChallenge(verifier)

	pending := &state.PendingAuthorization{
		FlowType:             state.FlowTypeBrowser,
		RedirectURI:          rt.config.CallbackURL(),
		UpstreamPKCEVerifier: verifier,
		CreatedAt:            time.Now(),
	}

	if err := rt.store.PutPendingAuthorization(ctx, browserState, pending, rt.config.PendingAuthorizationTTL); err != nil {
		logger.Errorw("failed to store pending browser login",
			"error", err.Error(),
		)
		renderErrorPage(w, http.StatusInternalServerError, "Login failed: internal error.")
		return
	}

	upstreamURL, err := rt.upstream.AuthorizationURL(browserState, challenge)
	if err != nil {
		logger.Errorw("failed to build upstream authorization URL",
			"error", err.Error(),
		)
		renderErrorPage(w, http.StatusInternalServerError, "Login failed: internal error.")
		return
	}

	http.Redirect(w, req, upstreamURL, http.StatusFound)
}

// LogoutHandler handles POST /auth/logout. It deletes the session record and
// expires the cookie; logging out without a session still succeeds.
func (rt *Router) LogoutHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if cookie, err := req.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := rt.store.DeleteSession(ctx, cookie.Value); err != nil {
			logger.Warnw("failed to delete session",
				"error", err.Error(),
			)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// StatusHandler handles GET /auth/status, reporting whether the request
// carries a live browser session.
func (rt *Router) StatusHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	authenticated := false
	if cookie, err := req.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		switch _, err := rt.store.GetSession(ctx, cookie.Value); {
		case err == nil:
			authenticated = true
		case !errors.Is(err, state.ErrNotFound):
			logger.Errorw("failed to look up session",
				"error", err.Error(),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]bool{"authenticated": authenticated})
}
