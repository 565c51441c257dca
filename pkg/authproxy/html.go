// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package authproxy

import (
	"html/template"
	"net/http"

	"github.com/oauthgate/oauthgate/pkg/logger"
)

var successPageTemplate = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Login successful</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 32rem; margin: 4rem auto; padding: 0 1rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
</style>
</head>
<body>
<h1>Login successful</h1>
<p>You are now signed in. You can close this tab and return to where you started.</p>
</body>
</html>
`))

var errorPageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Login failed</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 32rem; margin: 4rem auto; padding: 0 1rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
p.detail { color: #6b0f0f; }
</style>
</head>
<body>
<h1>Something went wrong</h1>
<p class="detail">{{.Message}}</p>
<p>Please retry from the terminal or application that started the login.</p>
</body>
</html>
`))

// renderSuccessPage renders the post-login page for the browser flow.
func renderSuccessPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successPageTemplate.Execute(w, nil); err != nil {
		logger.Errorw("failed to render success page",
			"error", err.Error(),
		)
	}
}

// renderErrorPage renders a human-readable error page. Used only when no
// client redirect target exists; the message is template-escaped, so
// upstream-provided text is safe to include.
func renderErrorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := errorPageTemplate.Execute(w, struct{ Message string }{Message: message}); err != nil {
		logger.Errorw("failed to render error page",
			"error", err.Error(),
		)
	}
}
