// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/samber/oops"
	"github.com/spf13/afero"

	"github.com/credgate/credgate/internal/auth"
	"github.com/credgate/credgate/internal/auth/memory"
	authpg "github.com/credgate/credgate/internal/auth/postgres"
	"github.com/credgate/credgate/internal/config"
	"github.com/credgate/credgate/internal/media"
	"github.com/credgate/credgate/internal/observability"
	"github.com/credgate/credgate/internal/store"
)

// serveDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type serveDeps struct {
	// StoreOpener connects the user store.
	// Default: openUserStore
	StoreOpener func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*userStore, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// UploaderFactory builds profile picture storage. The file system is
	// non-nil when pictures should be served by this process.
	// Default: newUploader
	UploaderFactory func(ctx context.Context, cfg config.StorageConfig) (auth.ImageUploader, http.FileSystem, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the HTTP listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// AutoMigrator wraps the methods serve uses from store.Migrator.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// userStore is an opened user repository.
type userStore struct {
	Users auth.UserRepository
	Ping  func(ctx context.Context) error
	Close func()
}

func (d *serveDeps) withDefaults() *serveDeps {
	out := serveDeps{}
	if d != nil {
		out = *d
	}
	if out.StoreOpener == nil {
		out.StoreOpener = openUserStore
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.UploaderFactory == nil {
		out.UploaderFactory = newUploader
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, checker, logger)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}

// openUserStore connects the configured user store driver.
func openUserStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*userStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		repo := memory.NewUserRepository()
		return &userStore{Users: repo, Ping: repo.Ping, Close: func() {}}, nil
	case config.DriverPostgres:
		pool, err := store.NewPool(ctx, cfg.URL, store.PoolOptions{MaxConns: cfg.MaxConns, Logger: logger})
		if err != nil {
			return nil, err
		}
		repo := authpg.NewUserRepository(pool)
		return &userStore{Users: repo, Ping: repo.Ping, Close: pool.Close}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newUploader builds the configured storage backend.
func newUploader(ctx context.Context, cfg config.StorageConfig) (auth.ImageUploader, http.FileSystem, error) {
	switch cfg.Backend {
	case config.BackendS3:
		uploader, err := media.NewS3Uploader(ctx, media.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return uploader, nil, nil
	case config.BackendLocal:
		uploader, err := media.NewLocalUploader(afero.NewOsFs(), cfg.Local.Dir, cfg.Local.PublicURL)
		if err != nil {
			return nil, nil, err
		}
		return uploader, uploader.FileSystem(), nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("backend", cfg.Backend).Errorf("unknown storage backend %q", cfg.Backend)
	}
}
