// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads Gatehouse configuration from an optional YAML
// file with command-line flag overrides.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	Session       SessionConfig       `koanf:"session"`
	Bootstrap     BootstrapConfig     `koanf:"bootstrap"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// ObservabilityConfig configures the metrics/health listener.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// SessionConfig configures session lifetime and cleanup.
type SessionConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// BootstrapConfig configures the default admin seed. The defaults are
// documented convenience credentials for fresh installs, not a
// security mechanism; production deployments override them.
type BootstrapConfig struct {
	AdminUsername string `koanf:"admin_username"`
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server:        ServerConfig{Addr: ":8080"},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9100"},
		Log:           LogConfig{Format: "json"},
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 15 * time.Minute,
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
			AdminEmail:    "admin@example.com",
			AdminPassword: "admin123",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and an
// optional flag set. Flag names use dotted paths matching the koanf
// keys (e.g. "server.addr"); flags override file values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "merge flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Session.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.ttl must be positive")
	}
	return nil
}
