// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the default admin account",
		Long: `Creates the default admin account when the user store is empty.
This command is idempotent - it will not create duplicates if run multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Bound the whole run; cmd.Context() carries SIGINT/SIGTERM.
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		_ = migrator.Close() //nolint:errcheck // migration error takes precedence
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)

	manager, err := auth.NewManager(sessions, cfg.Session.TTL)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(users, manager, auth.NewArgon2idHasher(), slog.Default())
	if err != nil {
		return err
	}

	if err := svc.EnsureDefaultAdmin(ctx,
		cfg.Bootstrap.AdminUsername,
		cfg.Bootstrap.AdminEmail,
		cfg.Bootstrap.AdminPassword,
	); err != nil {
		return err
	}

	cmd.Println("Seeding complete")
	return nil
}
