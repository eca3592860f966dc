// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/credgate/credgate/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the credgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credgate",
		Short: "credgate - password authentication for the chat app",
		Long: `credgate serves signup, login, session cookies and the
forgot/reset password flow over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: ./"+config.DefaultConfigFile+" if present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPurgeResetsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("credgate %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		},
	}
}

// loadConfig reads configuration for cmd without validating it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	//nolint:wrapcheck // Load returns coded oops errors
	return config.Load(config.LoadOptions{File: configFile, Flags: cmd.Flags()})
}
