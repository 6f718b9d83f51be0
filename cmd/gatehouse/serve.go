// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/web"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the Gatehouse HTTP API. Runs pending migrations, seeds the
default admin account if the store is empty, and serves until
interrupted.`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.String("server.addr", "", "HTTP API listen address")
	flags.String("observability.addr", "", "metrics/health listen address")
	flags.String("database.url", "", "PostgreSQL connection URL")
	flags.String("log.format", "", "log format (json or text)")
	flags.Duration("session.ttl", 0, "session lifetime")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	logging.SetDefault("gatehouse", version, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
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
	svc, err := auth.NewService(users, manager, auth.NewArgon2idHasher(), logger)
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

	obsServer := observability.NewServer(cfg.Observability.Addr, func() bool {
		return pool.Ping(ctx) == nil
	})

	janitor, err := auth.NewJanitor(manager, cfg.Session.SweepInterval, logger)
	if err != nil {
		return err
	}
	janitor.OnSweep = obsServer.Metrics().RecordSessionsSwept
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		janitor.Run(ctx)
	}()

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return err
	}

	handler, err := web.NewHandler(svc, users, logger, obsServer.Metrics(), cfg.Session.TTL)
	if err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	apiErrCh := make(chan error, 1)
	go func() {
		if serveErr := apiServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
		close(apiErrCh)
	}()

	logger.Info("gatehouse started",
		"addr", cfg.Server.Addr,
		"observability_addr", obsServer.Addr(),
		"session_ttl", cfg.Session.TTL.String())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr, ok := <-apiErrCh:
		if ok && serveErr != nil {
			runErr = oops.Code("SERVER_FAILED").With("server", "api").Wrap(serveErr)
		}
	case obsErr, ok := <-obsErrCh:
		if ok && obsErr != nil {
			runErr = oops.Code("SERVER_FAILED").With("server", "observability").Wrap(obsErr)
		}
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "api server shutdown failed", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logging.LogError(logger, "observability server shutdown failed", err)
	}
	<-janitorDone

	logger.Info("gatehouse stopped")
	return runErr
}

// changedFlags returns a flag set holding only the flags the user
// actually set, so untouched flags never clobber file or default
// config values.
func changedFlags(cmd *cobra.Command) *pflag.FlagSet {
	changed := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed.AddFlag(f)
	})
	return changed
}
