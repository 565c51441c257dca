// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the oauthgate server.
package main

import (
	"os"

	"github.com/oauthgate/oauthgate/cmd/oauthgate/app"
	"github.com/oauthgate/oauthgate/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
