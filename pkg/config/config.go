// Package config loads the daemon's own operational settings: an optional
// YAML file overlaid by environment variables, which always win. This is
// distinct from pkg/secrets, which harvests values injected into child
// server environments rather than the daemon's own knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where Load looks when the caller does not override
// it, rooted at the user's home directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".golemmcp", "config.yaml")
}

// Config is the daemon's operational configuration.
type Config struct {
	ManifestPath     string `yaml:"manifestPath" env:"GOLEMMCP_MANIFEST_PATH"`
	AuditCapacity    int    `yaml:"auditCapacity" env:"GOLEMMCP_AUDIT_CAPACITY"`
	RequestTimeoutMS int    `yaml:"requestTimeoutMs" env:"GOLEMMCP_REQUEST_TIMEOUT_MS"`
	SecretPrefix     string `yaml:"secretPrefix" env:"GOLEMMCP_SECRET_PREFIX"`

	Notify struct {
		Discord struct {
			Enabled   bool   `yaml:"enabled" env:"GOLEMMCP_NOTIFY_DISCORD_ENABLED"`
			ChannelID string `yaml:"channelId" env:"GOLEMMCP_NOTIFY_DISCORD_CHANNEL_ID"`
			Token     string `yaml:"token" env:"GOLEMMCP_NOTIFY_DISCORD_TOKEN"`
		} `yaml:"discord"`
		Slack struct {
			Enabled   bool   `yaml:"enabled" env:"GOLEMMCP_NOTIFY_SLACK_ENABLED"`
			ChannelID string `yaml:"channelId" env:"GOLEMMCP_NOTIFY_SLACK_CHANNEL_ID"`
			Token     string `yaml:"token" env:"GOLEMMCP_NOTIFY_SLACK_TOKEN"`
		} `yaml:"slack"`
	} `yaml:"notify"`
}

// defaults returns a Config populated with this layer's defaults, applied
// before the file and environment overlays.
func defaults() Config {
	return Config{
		ManifestPath:     "",
		AuditCapacity:    10000,
		RequestTimeoutMS: 30000,
		SecretPrefix:     "GOLEM_MCP_",
	}
}

// Load reads path (DefaultConfigPath() if empty), tolerating a missing
// file, then overlays process environment variables, which always win
// over the file.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// no file is fine; defaults plus environment still apply
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return &cfg, nil
}
