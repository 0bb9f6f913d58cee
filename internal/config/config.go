// Package config loads the application configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log,omitempty"`
	Web       WebConfig       `yaml:"web"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Downloads DownloadsConfig `yaml:"downloads"`
	DataDir   string          `yaml:"data_dir"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WebConfig contains dashboard server configuration.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DiscoveryConfig contains Nostr relay discovery configuration.
type DiscoveryConfig struct {
	Relays          []string      `yaml:"relays"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// DownloadsConfig contains prefetch manager configuration.
type DownloadsConfig struct {
	Dir                string        `yaml:"dir"`
	MaxParallel        int           `yaml:"max_parallel"`
	TargetVideosAhead  int           `yaml:"target_videos_ahead"`
	TargetMinutesAhead float64       `yaml:"target_minutes_ahead"`
	MaxBehindSeconds   int64         `yaml:"max_behind_seconds"`
	MaxStorageBytes    int64         `yaml:"max_storage_bytes"`
	ProbeWindowBytes   int64         `yaml:"probe_window_bytes"`
	CycleInterval      time.Duration `yaml:"cycle_interval"`
}

// Load reads and parses the configuration file. An empty path probes
// the default locations.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func defaultConfigPath() string {
	paths := []string{
		"./config/config.yaml",
		"../config/config.yaml",
		"/etc/reelcache/config.yaml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return paths[0]
}

// setDefaults fills in defaults for unset fields.
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Web.Host == "" {
		c.Web.Host = "127.0.0.1"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 3000
	}

	if c.DataDir == "" {
		c.DataDir = "./data"
	}

	if len(c.Discovery.Relays) == 0 {
		c.Discovery.Relays = []string{
			"wss://relay.damus.io",
			"wss://relay.snort.social",
		}
	}
	if c.Discovery.RefreshInterval == 0 {
		c.Discovery.RefreshInterval = 2 * time.Minute
	}
	if c.Discovery.FetchTimeout == 0 {
		c.Discovery.FetchTimeout = 15 * time.Second
	}

	if c.Downloads.Dir == "" {
		c.Downloads.Dir = filepath.Join(c.DataDir, "videos")
	}
	if c.Downloads.MaxParallel == 0 {
		c.Downloads.MaxParallel = 5
	}
	if c.Downloads.TargetVideosAhead == 0 {
		c.Downloads.TargetVideosAhead = 15
	}
	if c.Downloads.TargetMinutesAhead == 0 {
		c.Downloads.TargetMinutesAhead = 30
	}
	if c.Downloads.MaxBehindSeconds == 0 {
		c.Downloads.MaxBehindSeconds = 1200 // 20 minutes
	}
	if c.Downloads.MaxStorageBytes == 0 {
		c.Downloads.MaxStorageBytes = 1_000_000_000 // 1 GB
	}
	if c.Downloads.ProbeWindowBytes == 0 {
		c.Downloads.ProbeWindowBytes = 2 << 20 // 2 MiB
	}
	if c.Downloads.CycleInterval == 0 {
		c.Downloads.CycleInterval = 2 * time.Second
	}
}
