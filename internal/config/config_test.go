// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "127.0.0.1:9100", cfg.Observability.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "admin", cfg.Bootstrap.AdminUsername)
	assert.Equal(t, "admin123", cfg.Bootstrap.AdminPassword)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9999"
database:
  url: "postgres://gatehouse@localhost/gatehouse"
log:
  format: text
session:
  ttl: 1h
  sweep_interval: 5m
bootstrap:
  admin_username: root_user
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "postgres://gatehouse@localhost/gatehouse", cfg.Database.URL)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "root_user", cfg.Bootstrap.AdminUsername)

	// Untouched keys keep their defaults.
	assert.Equal(t, "127.0.0.1:9100", cfg.Observability.Addr)
	assert.Equal(t, "admin123", cfg.Bootstrap.AdminPassword)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9999"
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server.addr", "", "")
	flags.String("database.url", "", "")
	require.NoError(t, flags.Parse([]string{
		"--server.addr=:7777",
		"--database.url=postgres://flag@localhost/gatehouse",
	}))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "postgres://flag@localhost/gatehouse", cfg.Database.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "server: [not: valid: yaml")
	_, err := config.Load(path, nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("requires database url", func(t *testing.T) {
		cfg := config.Default()
		assert.Error(t, cfg.Validate())

		cfg.Database.URL = "postgres://gatehouse@localhost/gatehouse"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects non-positive session ttl", func(t *testing.T) {
		cfg := config.Default()
		cfg.Database.URL = "postgres://gatehouse@localhost/gatehouse"
		cfg.Session.TTL = 0
		assert.Error(t, cfg.Validate())
	})
}
