// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/credgate/credgate/internal/logging"
)

// Validate reports every invalid setting as one CONFIG_INVALID error.
func (c *Config) Validate() error {
	var problems []error
	add := func(field, msg string) {
		problems = append(problems, fmt.Errorf("%s %s", field, msg))
	}

	switch strings.ToLower(c.Environment) {
	case Development, Production, "test":
	default:
		add("environment", "must be development, production or test")
	}

	if c.Server.Addr == "" {
		add("server.addr", "is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout", "must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		add("log.format", "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "is not a valid level")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			add("database.url", "is required for the postgres driver")
		}
	case DriverMemory:
	default:
		add("database.driver", "must be postgres or memory")
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		add("auth.jwt_secret", "must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		add("auth.token_ttl", "must be positive")
	}

	if u, err := url.Parse(c.Reset.URLBase); err != nil || u.Scheme == "" || u.Host == "" {
		add("reset.url_base", "must be an absolute URL")
	}
	if c.Reset.DebugExposeToken && c.IsProduction() {
		add("reset.debug_expose_token", "cannot be enabled in production")
	}
	if c.Reset.PurgeInterval < 0 {
		add("reset.purge_interval", "cannot be negative")
	}

	if c.Password.MaxConcurrentHashes < 1 {
		add("password.max_concurrent_hashes", "must be at least 1")
	}
	a := c.Password.Argon2
	if a.MemoryKiB == 0 || a.Iterations == 0 || a.Parallelism == 0 {
		add("password.argon2", "memory_kib, iterations and parallelism must be positive")
	}

	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Local.Dir == "" {
			add("storage.local.dir", "is required for the local backend")
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			add("storage.s3.bucket", "is required for the s3 backend")
		}
	default:
		add("storage.backend", "must be local or s3")
	}

	if len(problems) == 0 {
		return nil
	}
	return oops.Code("CONFIG_INVALID").
		With("problems", len(problems)).
		Wrap(errors.Join(problems...))
}
