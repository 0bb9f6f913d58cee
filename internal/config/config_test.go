package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("web:\n  port: 8080\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, "127.0.0.1", cfg.Web.Host)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Downloads.MaxParallel)
	assert.Equal(t, int64(1_000_000_000), cfg.Downloads.MaxStorageBytes)
	assert.Equal(t, filepath.Join("./data", "videos"), cfg.Downloads.Dir)
	assert.NotEmpty(t, cfg.Discovery.Relays)
}

func TestLoadFullConfig(t *testing.T) {
	body := `
log:
  level: debug
  format: json
data_dir: /tmp/reelcache
web:
  host: 0.0.0.0
  port: 9000
discovery:
  relays:
    - wss://relay.example.com
  refresh_interval: 5m
downloads:
  dir: /tmp/reelcache/dl
  max_parallel: 2
  max_behind_seconds: 600
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0", cfg.Web.Host)
	assert.Equal(t, []string{"wss://relay.example.com"}, cfg.Discovery.Relays)
	assert.Equal(t, 5*time.Minute, cfg.Discovery.RefreshInterval)
	assert.Equal(t, "/tmp/reelcache/dl", cfg.Downloads.Dir)
	assert.Equal(t, 2, cfg.Downloads.MaxParallel)
	assert.Equal(t, int64(600), cfg.Downloads.MaxBehindSeconds)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("web: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
