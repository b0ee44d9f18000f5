// Package config loads the foundryd server's configuration via
// github.com/spf13/viper, reading an optional YAML file and environment
// variables, matching the cobra+viper shape used throughout the retrieval
// pack's CLI tools.
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the server binary needs at startup: store
// connection, the two secrets the dispatcher depends on, container-platform
// credentials, and the staleness/poll thresholds named in §4.4/§4.5.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	StoreDSN   string `mapstructure:"store_dsn"`

	EncryptionKeyB64 string `mapstructure:"encryption_key"`
	TokenSigningKey  string `mapstructure:"token_signing_key"`

	ContainerPlatform ContainerPlatformConfig `mapstructure:"container_platform"`

	DefaultDockerImage string `mapstructure:"default_docker_image"`
	WebhookEndpointURL string `mapstructure:"webhook_endpoint_url"`

	StaleThreshold  time.Duration `mapstructure:"stale_threshold"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	LockSweepPeriod time.Duration `mapstructure:"lock_sweep_period"`

	PollInitial  time.Duration `mapstructure:"poll_initial"`
	PollMax      time.Duration `mapstructure:"poll_max"`
	PollDeadline time.Duration `mapstructure:"poll_deadline"`

	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// ContainerPlatformConfig carries the remote-execution platform's
// credentials (§6's environment variables: API token, project id,
// environment id).
type ContainerPlatformConfig struct {
	APIToken      string `mapstructure:"api_token"`
	ProjectID     string `mapstructure:"project_id"`
	EnvironmentID string `mapstructure:"environment_id"`
}

// Load reads configuration already bound into viper (by cmd/foundryd's
// cobra flags and viper.AutomaticEnv) and applies defaults for anything
// left unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DefaultDockerImage == "" {
		cfg.DefaultDockerImage = "foundry/runner:latest"
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Hour
	}
	if cfg.LockSweepPeriod <= 0 {
		cfg.LockSweepPeriod = 5 * time.Minute
	}
	if cfg.PollInitial <= 0 {
		cfg.PollInitial = 5 * time.Second
	}
	if cfg.PollMax <= 0 {
		cfg.PollMax = 30 * time.Second
	}
	if cfg.PollDeadline <= 0 {
		cfg.PollDeadline = 5 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
}

// EncryptionKey decodes the base64-encoded 32-byte AES-256 key (§6's
// "symmetric encryption key (32 bytes, base64)").
func (c *Config) EncryptionKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyB64)
	if err != nil {
		return nil, fmt.Errorf("config: encryption_key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("config: encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Validate reports a missing required setting before the server starts.
func (c *Config) Validate() error {
	if c.TokenSigningKey == "" {
		return fmt.Errorf("config: token_signing_key is required")
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	return nil
}
