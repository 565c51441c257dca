// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"fmt"
	"net/http"
)

// DefaultErrorPreviewSize is the maximum size of the error body preview in HTTPError.
const DefaultErrorPreviewSize = 1024

// HTTPError represents an HTTP error response with status code and body preview.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// BodyPreview is a truncated copy of the response body for diagnostics.
	BodyPreview string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.BodyPreview == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.BodyPreview)
}

// NewHTTPError creates an HTTPError, truncating the body preview if needed.
func NewHTTPError(statusCode int, body []byte) *HTTPError {
	preview := string(body)
	if len(preview) > DefaultErrorPreviewSize {
		preview = preview[:DefaultErrorPreviewSize]
	}
	return &HTTPError{
		StatusCode:  statusCode,
		BodyPreview: preview,
	}
}
