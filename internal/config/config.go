// Package config loads the uplink daemon's runtime configuration from
// defaults, an optional YAML file, and UPLINK_-prefixed environment
// variables, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the daemon's runtime configuration.
type Config struct {
	BackendURL string `koanf:"backend_url"` // router-management backend base URL
	ListenAddr string `koanf:"listen_addr"` // local HTTP listen address
	DataDir    string `koanf:"data_dir"`    // directory for persistent state
	LogLevel   string `koanf:"log_level"`

	MaxAttempts      int `koanf:"max_attempts"`      // reconnection attempt bound
	HeartbeatSeconds int `koanf:"heartbeat_seconds"` // session idle-heartbeat threshold

	NotificationCapacity int `koanf:"notification_capacity"`
	DedupWindowMillis    int `koanf:"dedup_window_millis"`
}

// Load reads configuration. path may be empty to skip the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"backend_url":           "http://localhost:9444",
		"listen_addr":           ":9390",
		"data_dir":              defaultDataDir(),
		"log_level":             "info",
		"max_attempts":          10,
		"heartbeat_seconds":     5,
		"notification_capacity": 10,
		"dedup_window_millis":   2000,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// UPLINK_BACKEND_URL=... overrides backend_url, etc.
	if err := k.Load(env.Provider("UPLINK_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "UPLINK_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and ensures required directories exist.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.HeartbeatSeconds <= 0 {
		return fmt.Errorf("heartbeat_seconds must be positive")
	}

	// Ensure data dir exists.
	if err := os.MkdirAll(c.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "netdash", "uplink")
	}
	return filepath.Join(home, ".config", "netdash", "uplink")
}

// State holds credentials persisted after registration with the backend.
type State struct {
	DeviceID  string `json:"device_id"`
	AuthToken string `json:"auth_token"`
}

// StatePath returns the path to the state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// LoadState loads persisted state from disk. Returns nil if no state file exists.
func (c *Config) LoadState() (*State, error) {
	data, err := os.ReadFile(c.StatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveState persists state to disk.
func (c *Config) SaveState(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.StatePath(), data, 0o600)
}

// ClearState removes the persisted state file.
func (c *Config) ClearState() error {
	return os.Remove(c.StatePath())
}
