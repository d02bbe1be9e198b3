package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"POSTGRES_DSN", "GOMAFIA_PROXY", "GOMAFIA_BASE_URL", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfigFile(writeConfig(t, "postgres:\n  dsn: postgres://u:p@db:5432/gomafia\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, OnConflictSkip, cfg.Sync.OnConflict)
	assert.Equal(t, 100, cfg.Sync.RefreshLimit)
	assert.Equal(t, "https://gomafia.pro", cfg.Source.BaseURL)
	assert.Equal(t, DefaultUserAgent, cfg.Source.UserAgent)
	assert.Equal(t, time.Hour, cfg.Postgres.ConnMaxLifetime)
	assert.Equal(t, "postgres://u:p@db:5432/gomafia", cfg.Postgres.DSN)
	assert.Equal(t, "gomafia-sync", cfg.Telemetry.ServiceName)
	assert.InDelta(t, 1.0, cfg.Telemetry.SampleRatio, 1e-9)
	assert.Empty(t, cfg.Telemetry.HTTPEndpoint)
}

func TestLoadConfigFile_Values(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfigFile(writeConfig(t, `
sync:
  on_conflict: " Merge_Events "
  cron: "@every 6h"
postgres:
  conn_max_lifetime: 30m
source:
  rate_limit: 0.5
  cloudflare_bypass: true
`))
	require.NoError(t, err)

	assert.Equal(t, OnConflictMergeEvents, cfg.Sync.OnConflict)
	assert.Equal(t, "@every 6h", cfg.Sync.Cron)
	assert.Equal(t, 30*time.Minute, cfg.Postgres.ConnMaxLifetime)
	assert.InDelta(t, 0.5, cfg.Source.RateLimit, 1e-9)
	assert.True(t, cfg.Source.CloudflareBypass)
}

func TestLoadConfigFile_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://env@db/gomafia")
	t.Setenv("GOMAFIA_PROXY", "http://proxy:3128")
	t.Setenv("GOMAFIA_BASE_URL", "http://mirror.local")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://collector:4318/v1/traces")

	cfg, err := LoadConfigFile(writeConfig(t, "postgres:\n  dsn: postgres://yaml@db/gomafia\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@db/gomafia", cfg.Postgres.DSN)
	assert.Equal(t, "http://proxy:3128", cfg.Source.Proxy)
	assert.Equal(t, "http://mirror.local", cfg.Source.BaseURL)
	assert.Equal(t, "http://collector:4318/v1/traces", cfg.Telemetry.HTTPEndpoint)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFile(writeConfig(t, "sync:\n  on_conflict: overwrite\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on_conflict")

	_, err = LoadConfigFile(writeConfig(t, "telemetry:\n  sample_ratio: 1.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_ratio")
}

func TestValidate(t *testing.T) {
	cfg := &Config{Source: SourceConfig{BaseURL: "http://x"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, OnConflictSkip, cfg.Sync.OnConflict, "空策略按 skip 处理")

	cfg.Source.BaseURL = ""
	assert.Error(t, cfg.Validate())

	assert.True(t, OnConflictMergeEvents.Valid())
	assert.False(t, OnConflict("replace").Valid())
}
