package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 3, cfg.Extract.MaxAttempts)
	require.Equal(t, 4, cfg.Extract.BackoffBaseSeconds)
	require.Equal(t, 10, cfg.Extract.BackoffMaxSeconds)
	require.Equal(t, "file", cfg.Cache.Backend)
	require.Equal(t, 30, cfg.Discovery.DefaultMaxCompanies)
	require.Len(t, cfg.Discovery.DefaultListingURLs, 3)
	require.Equal(t, "random", cfg.Research.TokenStrategy)
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9090\ncache:\n  backend: memory\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Cache.Backend)
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true; c.Auth.APIKey = "" }},
		{"zero attempts", func(c *Config) { c.Extract.MaxAttempts = 0 }},
		{"inverted backoff", func(c *Config) { c.Extract.BackoffMaxSeconds = 1 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "tape" }},
		{"gcs without bucket", func(c *Config) { c.Cache.Backend = "gcs" }},
		{"postgres without dsn", func(c *Config) { c.Cache.Backend = "postgres" }},
		{"pubsub without project", func(c *Config) { c.PubSub.Provider = "pubsub" }},
		{"bad token strategy", func(c *Config) { c.Research.TokenStrategy = "chaotic" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
