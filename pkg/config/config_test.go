package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := []byte(`
environment: production
log_level: debug
api:
  origin: https://vote.example.edu
  request_timeout: 5s
  slow_request_timeout: 90s
poller:
  interval: 4s
session:
  backend: memory
election:
  departments: [CSE, IT]
`)

	err := os.WriteFile(configPath, configContent, 0644)
	require.NoError(t, err)

	t.Run("LoadValidConfig", func(t *testing.T) {
		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 5*time.Second, cfg.API.RequestTimeout)
		assert.Equal(t, 90*time.Second, cfg.API.SlowRequestTimeout)
		assert.Equal(t, 4*time.Second, cfg.Poller.Interval)
		assert.Equal(t, "memory", cfg.Session.Backend)
		assert.Equal(t, []string{"CSE", "IT"}, cfg.Election.Departments)
		assert.Equal(t, "https://vote.example.edu/api", cfg.ResolveBaseURL())
	})

	t.Run("EnvironmentOverride", func(t *testing.T) {
		t.Setenv("CHAINVOTE_LOG_LEVEL", "error")

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.LogLevel)
	})

	t.Run("EnvironmentOnlyKeys", func(t *testing.T) {
		t.Setenv("CHAINVOTE_API_BASE_URL", "https://vote.example.edu/api/")
		t.Setenv("CHAINVOTE_SESSION_PASSPHRASE", "correct horse")
		t.Setenv("CHAINVOTE_SESSION_REDIS_PASSWORD", "s3cret")
		t.Setenv("CHAINVOTE_SESSION_REDIS_DB", "2")

		cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "https://vote.example.edu/api/", cfg.API.BaseURL)
		assert.Equal(t, "https://vote.example.edu/api", cfg.ResolveBaseURL())
		assert.Equal(t, "correct horse", cfg.Session.Passphrase)
		assert.Equal(t, "s3cret", cfg.Session.Redis.Password)
		assert.Equal(t, 2, cfg.Session.Redis.DB)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		invalidPath := filepath.Join(tmpDir, "invalid.yaml")
		err := os.WriteFile(invalidPath, []byte("invalid: [yaml: syntax"), 0644)
		require.NoError(t, err)

		cfg, err := Load(invalidPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("DefaultValues", func(t *testing.T) {
		cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
		require.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 3*time.Second, cfg.Poller.Interval)
		assert.True(t, cfg.Poller.Enabled)
		assert.Equal(t, "http://localhost:5000/api", cfg.ResolveBaseURL())
		assert.Equal(t, []string{"CSE", "IT", "ENTC", "MECH"}, cfg.Election.Departments)
	})
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		wantErr      bool
		errSubstr    string
	}{
		{
			name:         "ValidConfig",
			modifyConfig: func(c *Config) {},
			wantErr:      false,
		},
		{
			name: "ZeroTimeout",
			modifyConfig: func(c *Config) {
				c.API.RequestTimeout = 0
			},
			wantErr:   true,
			errSubstr: "request_timeout",
		},
		{
			name: "SlowTimeoutTooShort",
			modifyConfig: func(c *Config) {
				c.API.SlowRequestTimeout = time.Second
			},
			wantErr:   true,
			errSubstr: "slow_request_timeout",
		},
		{
			name: "SubSecondInterval",
			modifyConfig: func(c *Config) {
				c.Poller.Interval = 500 * time.Millisecond
			},
			wantErr:   true,
			errSubstr: "interval",
		},
		{
			name: "FractionalInterval",
			modifyConfig: func(c *Config) {
				c.Poller.Interval = 1500 * time.Millisecond
			},
			wantErr:   true,
			errSubstr: "whole number of seconds",
		},
		{
			name: "DisabledPollerIgnoresInterval",
			modifyConfig: func(c *Config) {
				c.Poller.Enabled = false
				c.Poller.Interval = 0
			},
			wantErr: false,
		},
		{
			name: "UnknownSessionBackend",
			modifyConfig: func(c *Config) {
				c.Session.Backend = "sqlite"
			},
			wantErr:   true,
			errSubstr: "unknown backend",
		},
		{
			name: "RedisBackendDefaults",
			modifyConfig: func(c *Config) {
				c.Session.Backend = "redis"
			},
			wantErr: false,
		},
		{
			name: "RedisBackendWithoutAddr",
			modifyConfig: func(c *Config) {
				c.Session.Backend = "redis"
				c.Session.Redis.Addr = ""
			},
			wantErr:   true,
			errSubstr: "redis addr",
		},
		{
			name: "MetricsWithoutAddr",
			modifyConfig: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = ""
			},
			wantErr:   true,
			errSubstr: "metrics",
		},
		{
			name: "NoDepartments",
			modifyConfig: func(c *Config) {
				c.Election.Departments = nil
			},
			wantErr:   true,
			errSubstr: "departments",
		},
		{
			name: "ReservedElectionType",
			modifyConfig: func(c *Config) {
				c.Election.ElectionTypes = append(c.Election.ElectionTypes, "custom")
			},
			wantErr:   true,
			errSubstr: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modifyConfig(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		origin string
		want   string
	}{
		{name: "ExplicitBase", base: "https://api.example.edu/v1/", origin: "http://localhost", want: "https://api.example.edu/v1"},
		{name: "Localhost", origin: "http://localhost:8080", want: "http://localhost:5000/api"},
		{name: "Loopback", origin: "http://127.0.0.1", want: "http://localhost:5000/api"},
		{name: "EmptyOrigin", origin: "", want: "http://localhost:5000/api"},
		{name: "Deployed", origin: "https://chainvote.example.edu/", want: "https://chainvote.example.edu/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.API.BaseURL = tt.base
			cfg.API.Origin = tt.origin
			assert.Equal(t, tt.want, cfg.ResolveBaseURL())
		})
	}
}

func TestHasDepartment(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.HasDepartment("cse"))
	assert.True(t, cfg.HasDepartment("ENTC"))
	assert.False(t, cfg.HasDepartment("CIVIL"))
}

func TestGetLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	assert.Equal(t, zap.WarnLevel, cfg.GetLogLevel().Level())

	cfg.LogLevel = "bogus"
	assert.Equal(t, zap.InfoLevel, cfg.GetLogLevel().Level())
}
