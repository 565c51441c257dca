// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oauthgate/oauthgate/pkg/authproxy/state"
	"github.com/oauthgate/oauthgate/pkg/authproxy/upstream"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

// Router provides the HTTP handlers for the OAuth proxy endpoints.
type Router struct {
	config   *Config
	store    state.Store
	upstream upstream.Provider
}

// NewRouter creates a Router with the given dependencies.
func NewRouter(config *Config, store state.Store, up upstream.Provider) (*Router, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if up == nil {
		return nil, errors.New("upstream provider is required")
	}

	return &Router{
		config:   config,
		store:    store,
		upstream: up,
	}, nil
}

// Routes registers all proxy endpoints on the provided chi router.
func (rt *Router) Routes(r chi.Router) {
	// OAuth surface for AI clients.
	r.Get("/authorize", rt.AuthorizeHandler)
	r.Get(CallbackPath, rt.CallbackHandler)
	r.Post("/token", rt.TokenHandler)
	r.Post("/register", rt.RegisterHandler)

	// Browser login flow.
	r.Get("/auth/login", rt.LoginHandler)
	r.Post("/auth/logout", rt.LogoutHandler)
	r.Get("/auth/status", rt.StatusHandler)

	// Discovery documents (RFC 8414 / RFC 9728). The wildcard variants serve
	// clients that append the resource path to the well-known prefix.
	r.Get("/.well-known/oauth-authorization-server", rt.AuthorizationServerMetadataHandler)
	r.Get("/.well-known/oauth-authorization-server/*", rt.AuthorizationServerMetadataHandler)
	r.Options("/.well-known/oauth-authorization-server", rt.AuthorizationServerMetadataHandler)
	r.Get("/.well-known/oauth-protected-resource", rt.ProtectedResourceMetadataHandler)
	r.Get("/.well-known/oauth-protected-resource/*", rt.ProtectedResourceMetadataHandler)
	r.Options("/.well-known/oauth-protected-resource", rt.ProtectedResourceMetadataHandler)

	r.Get("/health", rt.HealthHandler)
}

// HealthHandler reports liveness, including state store reachability.
func (rt *Router) HealthHandler(w http.ResponseWriter, req *http.Request) {
	if err := rt.store.Health(req.Context()); err != nil {
		logger.Errorw("state store health check failed",
			"error", err.Error(),
		)
		http.Error(w, "state store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
