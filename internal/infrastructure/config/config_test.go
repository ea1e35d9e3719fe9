package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every Load() call needs the vault secret; nothing else is mandatory
// outside production.
const testVaultSecret = "unit-test-vault-secret"

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	keys := []string{
		"SELLERHUB_APP_NAME",
		"SELLERHUB_APP_ENV",
		"SELLERHUB_APP_PORT",
		"SELLERHUB_DATABASE_HOST",
		"SELLERHUB_DATABASE_PORT",
		"SELLERHUB_DATABASE_USER",
		"SELLERHUB_DATABASE_PASSWORD",
		"SELLERHUB_DATABASE_DBNAME",
		"SELLERHUB_DATABASE_SSLMODE",
		"SELLERHUB_DATABASE_MAX_OPEN_CONNS",
		"SELLERHUB_DATABASE_MAX_IDLE_CONNS",
		"SELLERHUB_JWT_SECRET",
		"SELLERHUB_VAULT_SECRET",
		"SELLERHUB_SYNC_TRIGGER_TOKEN",
		"SELLERHUB_SYNC_BATCH_SIZE",
		"SELLERHUB_SYNC_POLL_INTERVAL",
		"SELLERHUB_ARCHIVE_ENABLED",
		"SELLERHUB_ARCHIVE_BUCKET",
		"SELLERHUB_TELEMETRY_ENABLED",
		"SELLERHUB_TELEMETRY_SERVICE_NAME",
		"SELLERHUB_TELEMETRY_DB_METRICS_ENABLED",
		"SELLERHUB_TELEMETRY_LOGS_ENABLED",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("SELLERHUB_VAULT_SECRET", testVaultSecret)
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	withEnv(t, nil)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sellerhub-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "sellerhub", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, 15*time.Minute, cfg.Sync.PollInterval)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, 72*time.Hour, cfg.Sync.DedupTTL)
	assert.Equal(t, testVaultSecret, cfg.Vault.Secret)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"SELLERHUB_APP_NAME":           "sync-worker",
		"SELLERHUB_APP_PORT":           "9000",
		"SELLERHUB_DATABASE_HOST":      "db.internal",
		"SELLERHUB_DATABASE_PORT":      "5433",
		"SELLERHUB_DATABASE_DBNAME":    "sellerhub_test",
		"SELLERHUB_SYNC_BATCH_SIZE":    "50",
		"SELLERHUB_SYNC_POLL_INTERVAL": "5m",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sync-worker", cfg.App.Name)
	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "sellerhub_test", cfg.Database.DBName)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Sync.PollInterval)
}

func TestLoad_TelemetryFlags(t *testing.T) {
	t.Run("telemetry disabled by default", func(t *testing.T) {
		withEnv(t, nil)

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Telemetry.Enabled)
		assert.False(t, cfg.Telemetry.DBMetricsEnabled)
		assert.False(t, cfg.Telemetry.LogsEnabled)
		// Service name falls back to the app name, sampling to 1.0.
		assert.Equal(t, cfg.App.Name, cfg.Telemetry.ServiceName)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("metrics and log export flags", func(t *testing.T) {
		withEnv(t, map[string]string{
			"SELLERHUB_TELEMETRY_ENABLED":            "true",
			"SELLERHUB_TELEMETRY_DB_METRICS_ENABLED": "true",
			"SELLERHUB_TELEMETRY_LOGS_ENABLED":       "true",
		})

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Telemetry.Enabled)
		assert.True(t, cfg.Telemetry.DBMetricsEnabled)
		assert.True(t, cfg.Telemetry.LogsEnabled)
	})
}

func TestLoad_Validation(t *testing.T) {
	t.Run("requires vault.secret", func(t *testing.T) {
		withEnv(t, nil)
		os.Unsetenv("SELLERHUB_VAULT_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vault.secret is required")
	})

	t.Run("requires jwt.secret in production", func(t *testing.T) {
		withEnv(t, map[string]string{
			"SELLERHUB_APP_ENV":            "production",
			"SELLERHUB_SYNC_TRIGGER_TOKEN": "trigger-token",
		})

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires sync.trigger_token in production", func(t *testing.T) {
		withEnv(t, map[string]string{
			"SELLERHUB_APP_ENV":    "production",
			"SELLERHUB_JWT_SECRET": "this-is-a-very-secure-jwt-secret-key",
		})

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.trigger_token is required in production")
	})

	t.Run("requires archive.bucket when archiving is enabled", func(t *testing.T) {
		withEnv(t, map[string]string{
			"SELLERHUB_ARCHIVE_ENABLED": "true",
		})

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive.bucket is required")
	})

	t.Run("passes with full production config", func(t *testing.T) {
		withEnv(t, map[string]string{
			"SELLERHUB_APP_ENV":            "production",
			"SELLERHUB_JWT_SECRET":         "this-is-a-very-secure-jwt-secret-key",
			"SELLERHUB_SYNC_TRIGGER_TOKEN": "trigger-token",
		})

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		// Production defaults to JSON logs.
		assert.Equal(t, "json", cfg.Log.Format)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "sellerhub",
		Password: "secret",
		DBName:   "sellerhub",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "user=sellerhub")
	assert.Contains(t, dsn, "dbname=sellerhub")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestDatabaseConfig_URL(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "sellerhub",
		Password: "p@ss/word",
		DBName:   "sellerhub",
		SSLMode:  "require",
	}

	u := cfg.URL()
	assert.Contains(t, u, "postgres://")
	assert.Contains(t, u, "db.internal:5432/sellerhub")
	assert.Contains(t, u, "sslmode=require")
	// Credentials are escaped so reserved characters survive the URL.
	assert.NotContains(t, u, "p@ss/word")
}
