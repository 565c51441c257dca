// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the oauthgate command-line application.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oauthgate/oauthgate/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "oauthgate",
	DisableAutoGenTag: true,
	Short:             "oauthgate is a protocol-translating OAuth 2.0 proxy for AI-agent clients",
	Long: `oauthgate fronts an upstream identity provider with a same-origin,
standards-compliant OAuth 2.0 authorization server surface: mandatory PKCE,
dynamic client registration, and RFC 8414/9728 discovery. It issues one-time
authorization codes that redeem for the upstream access token verbatim and
never mints tokens of its own.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for oauthgate.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	// Every flag is also settable via OAUTHGATE_* environment variables,
	// e.g. OAUTHGATE_UPSTREAM_CLIENT_SECRET.
	viper.SetEnvPrefix("OAUTHGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
