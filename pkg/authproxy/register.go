// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/oauthgate/oauthgate/pkg/logger"
	"github.com/oauthgate/oauthgate/pkg/networking"
)

// RegisterHandler handles POST /register, the RFC 7591 dynamic client
// registration proxy. The registration document is forwarded to the upstream
// provider unmodified and the upstream's status code and body come back
// unchanged; the proxy keeps no registration state of its own.
func (rt *Router) RegisterHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	body, err := io.ReadAll(io.LimitReader(req.Body, networking.DefaultMaxResponseSize))
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	// Reject bodies that are not JSON at all before burning an upstream
	// round trip.
	if !json.Valid(body) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "registration document must be JSON")
		return
	}

	status, respBody, err := rt.upstream.RegisterClient(ctx, body)
	if err != nil {
		logger.Errorw("failed to relay client registration",
			"error", err.Error(),
		)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to reach the upstream registration endpoint")
		return
	}

	logger.Infow("relayed client registration",
		"status", status,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(respBody)
}
