// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/credgate/credgate/internal/auth"
	"github.com/credgate/credgate/internal/logging"
)

// purgeStoreOpener opens the store for purge-resets; tests replace it.
var purgeStoreOpener = openUserStore

// NewPurgeResetsCmd creates the purge-resets subcommand.
func NewPurgeResetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-resets",
		Short: "Clear expired password reset tokens",
		Long: `Clear every password reset token whose expiry has passed. Expired
tokens are already rejected; this only tidies the users table.`,
		Args: cobra.NoArgs,
		RunE: runPurgeResets,
	}
}

func runPurgeResets(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(logging.Options{
		Service: "credgate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	users, err := purgeStoreOpener(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer users.Close()

	resets, err := auth.NewResetTokenManager(users.Users)
	if err != nil {
		return err
	}

	n, err := resets.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Purged %d expired reset tokens\n", n)
	return nil
}
