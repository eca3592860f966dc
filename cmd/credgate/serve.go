// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/credgate/credgate/internal/auth"
	"github.com/credgate/credgate/internal/config"
	"github.com/credgate/credgate/internal/httpapi"
	"github.com/credgate/credgate/internal/logging"
	"github.com/credgate/credgate/internal/mail"
	"github.com/credgate/credgate/internal/observability"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP authentication API",
		Long: `Start the HTTP API under /api/auth, the metrics and health
server, and the optional reset token janitor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the server until ctx is done or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *serveDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "credgate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	logger.Info("starting credgate",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment,
		"database_driver", cfg.Database.Driver,
		"storage_backend", cfg.Storage.Backend,
	)

	if cfg.Database.Driver == config.DriverPostgres && cfg.Database.AutoMigrate {
		if err := autoMigrate(deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	users, err := deps.StoreOpener(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer users.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, users.Ping, logger)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	resets, err := auth.NewResetTokenManager(users.Users)
	if err != nil {
		return err
	}

	service, uploads, err := buildService(ctx, cfg, deps, users.Users, resets, metrics, logger)
	if err != nil {
		return err
	}

	router, err := httpapi.NewRouter(httpapi.RouterParams{
		Service: service,
		Cookies: auth.CookiePolicy{
			Production: cfg.IsProduction(),
			Domain:     cfg.Cookie.Domain,
			MaxAge:     cfg.Auth.TokenTTL,
		},
		Logger:        logger,
		Metrics:       metrics,
		AllowedOrigin: cfg.CORS.AllowedOrigin,
		Production:    cfg.IsProduction(),
		Uploads:       uploads,
	})
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrCh <- serveErr
		}
	}()
	logger.Info("http server listening", "addr", listener.Addr().String())

	stopHTTP := func() {
		shutdownHTTP(httpServer, cfg, logger)
		for range httpErrCh { //nolint:revive // drain until Serve returns
		}
	}

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopHTTP()
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	var wg sync.WaitGroup
	if cfg.Reset.PurgeInterval > 0 {
		janitor := &purgeJanitor{
			resets:   resets,
			interval: cfg.Reset.PurgeInterval,
			recorder: metrics,
			logger:   logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			janitor.Run(ctx)
		}()
	}

	cmd.Println("credgate started")

	var runErr error
	select {
	case serveErr, ok := <-httpErrCh:
		if ok {
			runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	cancel()
	stopHTTP()
	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
		shutdownCancel()
	}
	wg.Wait()

	logger.Info("shutdown complete")
	return runErr
}

// buildService wires the credential service and returns it with the file
// system to serve uploads from, if any.
func buildService(
	ctx context.Context,
	cfg *config.Config,
	deps *serveDeps,
	users auth.UserRepository,
	resets *auth.ResetTokenManager,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*auth.CredentialService, http.FileSystem, error) {
	a := cfg.Password.Argon2
	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		MemoryKiB:   a.MemoryKiB,
		Iterations:  a.Iterations,
		Parallelism: a.Parallelism,
	})
	if err != nil {
		return nil, nil, err
	}

	// Unknown-email logins verify against this so they cost the same as
	// real ones under the configured work factor.
	dummyPassword, _, err := auth.GenerateResetToken()
	if err != nil {
		return nil, nil, err
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := auth.NewTokenMinter([]byte(cfg.Auth.JWTSecret), auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return nil, nil, err
	}

	images, uploads, err := deps.UploaderFactory(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	mailer, err := mail.NewResetMailer(mail.NewLogSender(logger, mail.WithBodyLogging(cfg.Reset.DebugExposeToken)))
	if err != nil {
		return nil, nil, err
	}

	service, err := auth.NewCredentialService(auth.Deps{
		Users:    users,
		Hasher:   hasher,
		Tokens:   tokens,
		Resets:   resets,
		Images:   images,
		Notifier: mailer,
		Recorder: metrics,
		Logger:   logger,
	}, auth.Options{
		ResetURLBase:        cfg.Reset.URLBase,
		ExposeResetToken:    cfg.Reset.DebugExposeToken,
		MaxConcurrentHashes: int(cfg.Password.MaxConcurrentHashes),
		DummyHash:           dummyHash,
	})
	if err != nil {
		return nil, nil, err
	}
	return service, uploads, nil
}

func autoMigrate(deps *serveDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("running database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "migrate up").Wrap(err)
	}
	return nil
}

func shutdownHTTP(srv *http.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
}

// monitorServerErrors cancels the run when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
