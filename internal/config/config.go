// Package config provides configuration loading for projecthub.
//
// Values come from three layers: hardcoded defaults, a YAML file and
// PROJECTHUB_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/v2"
)

// Config holds the complete projecthub configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	State  StateConfig  `koanf:"state"`
	Notify NotifyConfig `koanf:"notify"`
	Panels PanelsConfig `koanf:"panels"`

	// k retains the merged tree so other packages can decode their own
	// sections (telemetry, logging) without this package importing them.
	k *koanf.Koanf
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port the daemon listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StateConfig holds the state store configuration.
type StateConfig struct {
	Path         string   `koanf:"path"`
	SaveDebounce Duration `koanf:"save_debounce"`
}

// NotifyConfig holds the NATS active-project announcer configuration.
type NotifyConfig struct {
	Enabled bool   `koanf:"enabled"`
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
	Token   Secret `koanf:"token"`
}

// PanelsConfig holds tunables for the built-in panels.
type PanelsConfig struct {
	GitPollInterval    Duration `koanf:"git_poll_interval"`
	CoverageFiles      []string `koanf:"coverage_files"`
	CoverageReloadRate Duration `koanf:"coverage_reload_rate"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.State.Path == "" {
		return errors.New("state path is required")
	}
	if c.Notify.Enabled {
		if c.Notify.NATSURL == "" {
			return errors.New("notify.nats_url is required when notify is enabled")
		}
		if c.Notify.Subject == "" {
			return errors.New("notify.subject is required when notify is enabled")
		}
	}
	if c.Panels.GitPollInterval.Duration() < 100*time.Millisecond {
		return fmt.Errorf("panels.git_poll_interval too small: %s", c.Panels.GitPollInterval.Duration())
	}
	return nil
}

// Section decodes the subtree at key into out. Keys absent from the loaded
// sources leave out untouched, so callers pass a struct pre-filled with defaults.
func (c *Config) Section(key string, out interface{}) error {
	if c.k == nil || !c.k.Exists(key) {
		return nil
	}
	if err := c.k.Unmarshal(key, out); err != nil {
		return fmt.Errorf("failed to decode %s section: %w", key, err)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.State.Path == "" {
		cfg.State.Path = filepath.Join(configDir(), "state.json")
	}
	if cfg.State.SaveDebounce == 0 {
		cfg.State.SaveDebounce = Duration(500 * time.Millisecond)
	}

	if cfg.Notify.NATSURL == "" {
		cfg.Notify.NATSURL = "nats://127.0.0.1:4222"
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "projecthub.project.active"
	}

	if cfg.Panels.GitPollInterval == 0 {
		cfg.Panels.GitPollInterval = Duration(5 * time.Second)
	}
	if len(cfg.Panels.CoverageFiles) == 0 {
		cfg.Panels.CoverageFiles = []string{"coverage.out", "coverage/lcov.info"}
	}
	if cfg.Panels.CoverageReloadRate == 0 {
		cfg.Panels.CoverageReloadRate = Duration(time.Second)
	}
}

// configDir returns ~/.config/projecthub, falling back to the working directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".projecthub"
	}
	return filepath.Join(home, ".config", "projecthub")
}
