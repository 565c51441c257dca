// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/oauthgate/oauthgate/pkg/logger"
)

// oauthError is the RFC 6749 error response shape.
type oauthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// writeOAuthError writes an RFC 6749 JSON error response. Used when no
// redirect target is known, so the error goes straight back to the caller.
func writeOAuthError(w http.ResponseWriter, status int, errorCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(oauthError{Code: errorCode, Description: description}); err != nil {
		logger.Errorw("failed to encode error response",
			"error", err.Error(),
		)
	}
}

// redirectWithError sends an OAuth error back to the client's redirect URI.
// Errors discovered after a redirect target is known must propagate to the
// party that can act on them, never be swallowed by the proxy.
func redirectWithError(w http.ResponseWriter, redirectURI, clientState, errorCode, description string) {
	if redirectURI == "" {
		writeOAuthError(w, http.StatusBadRequest, errorCode, description)
		return
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "invalid redirect URI")
		return
	}

	q := u.Query()
	q.Set("error", errorCode)
	if description != "" {
		q.Set("error_description", description)
	}
	if clientState != "" {
		q.Set("state", clientState)
	}
	u.RawQuery = q.Encode()

	// Manual redirect header instead of http.Redirect to avoid needing the request.
	w.Header().Set("Location", u.String())
	w.WriteHeader(http.StatusFound)
}

// buildCallbackURL appends code and state to the client's redirect URI.
func buildCallbackURL(redirectURI, code, clientState string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}

	q := u.Query()
	q.Set("code", code)
	if clientState != "" {
		q.Set("state", clientState)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
