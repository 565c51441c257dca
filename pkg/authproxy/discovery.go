// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/oauthgate/oauthgate/pkg/authproxy/crypto"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

// DefaultDiscoveryCacheMaxAge is the Cache-Control max-age for the discovery
// endpoints (1 hour).
const DefaultDiscoveryCacheMaxAge = 3600

// AuthorizationServerMetadata is the RFC 8414 authorization server metadata
// document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
}

// ProtectedResourceMetadata is the RFC 9728 protected resource metadata
// document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported"`
}

// AuthorizationServerMetadataHandler handles
// GET /.well-known/oauth-authorization-server and any path-suffixed variant
// of it. All endpoints are advertised on the proxy's own origin: that is the
// whole point of the proxy.
func (rt *Router) AuthorizationServerMetadataHandler(w http.ResponseWriter, req *http.Request) {
	if handleDiscoveryCORS(w, req) {
		return
	}

	metadata := AuthorizationServerMetadata{
		Issuer:                            rt.config.Issuer,
		AuthorizationEndpoint:             rt.config.Issuer + "/authorize",
		TokenEndpoint:                     rt.config.Issuer + "/token",
		RegistrationEndpoint:              rt.config.Issuer + "/register",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		CodeChallengeMethodsSupported:     []string{crypto.PKCEChallengeMethodS256},
		TokenEndpointAuthMethodsSupported: []string{"none"},
		ScopesSupported:                   rt.config.ScopesSupported,
	}

	writeDiscoveryDocument(w, metadata)
}

// ProtectedResourceMetadataHandler handles
// GET /.well-known/oauth-protected-resource and any path-suffixed variant.
// It tells clients that this proxy is the authorization server protecting
// the resource.
func (rt *Router) ProtectedResourceMetadataHandler(w http.ResponseWriter, req *http.Request) {
	if handleDiscoveryCORS(w, req) {
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:               rt.config.Issuer,
		AuthorizationServers:   []string{rt.config.Issuer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        rt.config.ScopesSupported,
	}

	writeDiscoveryDocument(w, metadata)
}

// handleDiscoveryCORS sets CORS headers for the discovery endpoints and
// answers preflight requests. Discovery documents are public by design, so
// any origin may read them. Returns true when the request was a preflight
// and has been fully handled.
func handleDiscoveryCORS(w http.ResponseWriter, req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "86400")

	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func writeDiscoveryDocument(w http.ResponseWriter, doc any) {
	data, err := json.Marshal(doc)
	if err != nil {
		logger.Errorw("failed to encode discovery document",
			"error", err.Error(),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", DefaultDiscoveryCacheMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}
