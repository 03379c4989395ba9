package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	def := DefaultAppConfig()
	assert.Equal(t, def.API, cfg.API)
	assert.Equal(t, def.Polling, cfg.Polling)
	assert.Equal(t, 10, cfg.Notifications.AutoExpireSec)
	assert.True(t, cfg.Cancellation.AssumeCustomerWhenUnknown)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://sf.example.com/api
  page_size: 0
storage:
  backend: redis
  redis_addr: cache:6379
polling:
  ratings_interval_sec: 60
cancellation:
  assume_customer_when_unknown: false
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://sf.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.API.PageSize, "non-positive page size falls back")
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 10, cfg.Polling.BookingsIntervalSec)
	assert.Equal(t, 60, cfg.Polling.RatingsIntervalSec)
	assert.False(t, cfg.Cancellation.AssumeCustomerWhenUnknown)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultAppConfig()
	cfg.API.BaseURL = "http://api.internal/api"
	cfg.Storage.SQLitePath = "/var/lib/bookingwatch/state.db"
	cfg.Log.Level = "debug"
	cfg.Metrics.Addr = ":9090"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "state.db"), expandHome("~/state.db"))
	assert.Equal(t, "/abs/state.db", expandHome("/abs/state.db"))
}
