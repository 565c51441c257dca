// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

// Package networking provides HTTP client utilities for outbound calls to
// the upstream identity provider.
package networking

import (
	"net/http"
	"time"
)

const (
	// DefaultUpstreamTimeout bounds every outbound call to the upstream
	// provider. A hung upstream must not hang the proxy, so this is
	// deliberately short.
	DefaultUpstreamTimeout = 10 * time.Second

	// DefaultMaxResponseSize is the maximum response body size read from
	// the upstream provider (1MB).
	DefaultMaxResponseSize = 1024 * 1024

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"

	// ContentTypeFormURLEncoded is the form-urlencoded content type.
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// HTTPClient is the interface for making HTTP requests. *http.Client
// satisfies it; tests substitute fakes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an HTTP client with an overall request timeout and
// bounded transport timeouts. A non-positive timeout selects
// DefaultUpstreamTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
	}
}
