// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

// Package config loads credgate configuration.
//
// Values are layered, lowest precedence first: built-in defaults, an
// optional YAML file, the unprefixed variables JWT_SECRET, DATABASE_URL,
// FRONTEND_URL, NODE_ENV and PORT, CREDGATE_-prefixed variables (a double
// underscore separates levels, so CREDGATE_AUTH__JWT_SECRET sets
// auth.jwt_secret), and finally command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes structured environment variables.
const EnvPrefix = "CREDGATE_"

// DefaultConfigFile is read when present and no file is named explicitly.
const DefaultConfigFile = "credgate.yaml"

// Environment names.
const (
	Development = "development"
	Production  = "production"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// MinJWTSecretLength matches the session signer's requirement.
const MinJWTSecretLength = 32

// Config is the complete runtime configuration.
type Config struct {
	Environment string         `koanf:"environment"`
	Server      ServerConfig   `koanf:"server"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	Log         LogConfig      `koanf:"log"`
	Database    DatabaseConfig `koanf:"database"`
	Auth        AuthConfig     `koanf:"auth"`
	Cookie      CookieConfig   `koanf:"cookie"`
	CORS        CORSConfig     `koanf:"cors"`
	Reset       ResetConfig    `koanf:"reset"`
	Password    PasswordConfig `koanf:"password"`
	Storage     StorageConfig  `koanf:"storage"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig selects and configures the user store.
type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
	MaxConns    int32  `koanf:"max_conns"`
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Domain string `koanf:"domain"`
}

// CORSConfig configures cross-origin access for the frontend.
type CORSConfig struct {
	AllowedOrigin string `koanf:"allowed_origin"`
}

// ResetConfig configures the password reset flow.
type ResetConfig struct {
	URLBase          string        `koanf:"url_base"`
	DebugExposeToken bool          `koanf:"debug_expose_token"`
	PurgeInterval    time.Duration `koanf:"purge_interval"`
}

// PasswordConfig configures hashing.
type PasswordConfig struct {
	MaxConcurrentHashes int64        `koanf:"max_concurrent_hashes"`
	Argon2              Argon2Config `koanf:"argon2"`
}

// Argon2Config is the argon2id work factor.
type Argon2Config struct {
	MemoryKiB   uint32 `koanf:"memory_kib"`
	Iterations  uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
}

// StorageConfig selects and configures profile picture storage.
type StorageConfig struct {
	Backend string      `koanf:"backend"`
	S3      S3Config    `koanf:"s3"`
	Local   LocalConfig `koanf:"local"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PublicURL string `koanf:"public_url"`
}

// LocalConfig configures the local filesystem backend.
type LocalConfig struct {
	Dir       string `koanf:"dir"`
	PublicURL string `koanf:"public_url"`
}

// IsProduction reports whether the production environment is selected.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, Production)
}

// defaults are the lowest configuration layer.
var defaults = map[string]any{
	"environment":                    Development,
	"server.addr":                    ":5001",
	"server.read_header_timeout":     "10s",
	"server.shutdown_timeout":        "10s",
	"metrics.addr":                   "127.0.0.1:9101",
	"log.format":                     "json",
	"log.level":                      "info",
	"database.driver":                DriverPostgres,
	"database.auto_migrate":          true,
	"auth.token_ttl":                 "168h",
	"cors.allowed_origin":            "http://localhost:5173",
	"reset.url_base":                 "http://localhost:5173",
	"reset.debug_expose_token":       false,
	"reset.purge_interval":           "0s",
	"password.max_concurrent_hashes": 4,
	"password.argon2.memory_kib":     64 * 1024,
	"password.argon2.iterations":     1,
	"password.argon2.parallelism":    4,
	"storage.backend":                BackendLocal,
	"storage.local.dir":              "./uploads",
	"storage.local.public_url":       "http://localhost:5001/uploads",
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"database-url": "database.url",
	"db-driver":    "database.driver",
	"environment":  "environment",
}

// legacyEnv maps the original unprefixed variables to configuration keys.
var legacyEnv = map[string][]string{
	"JWT_SECRET":   {"auth.jwt_secret"},
	"DATABASE_URL": {"database.url"},
	"FRONTEND_URL": {"reset.url_base", "cors.allowed_origin"},
	"NODE_ENV":     {"environment"},
}

// LoadOptions configures Load.
type LoadOptions struct {
	// File names a YAML file that must exist. When empty, DefaultConfigFile
	// is read if it exists.
	File string
	// Flags, when set, is the top configuration layer. Only flags named in
	// RegisterFlags are mapped.
	Flags *pflag.FlagSet
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":5001", "HTTP listen address")
	fs.String("metrics-addr", "127.0.0.1:9101", "metrics and health listen address (empty disables)")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("db-driver", DriverPostgres, "user store driver (postgres or memory)")
	fs.String("environment", Development, "deployment environment (development or production)")
}

// Load builds a Config from all layers. It does not validate; call
// Validate before use.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if err := loadFile(k, opts.File); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnvValue(k)), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "legacy env").Wrap(err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("layer", "file").With("path", path).Wrap(err)
	}
	return nil
}

// envKey turns CREDGATE_AUTH__JWT_SECRET into auth.jwt_secret.
func envKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(name, "__", "."))
}

// legacyEnvValue maps the unprefixed variables. FRONTEND_URL feeds two
// keys, so the extra key is set directly on k.
func legacyEnvValue(k *koanf.Koanf) func(key, value string) (string, any) {
	return func(key, value string) (string, any) {
		if key == "PORT" {
			if value == "" {
				return "", nil
			}
			return "server.addr", ":" + value
		}
		targets, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		for _, extra := range targets[1:] {
			_ = k.Set(extra, value) //nolint:errcheck // Set only fails on a nil koanf
		}
		return targets[0], value
	}
}
