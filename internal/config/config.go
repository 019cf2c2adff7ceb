// Package config provides configuration loading and structs for the limud server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Remote  RemoteConfig  `yaml:"remote"`
	Watch   WatchConfig   `yaml:"watch"`
}

// WatchConfig holds transcript import directory settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the catalog database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SearchConfig holds search and debounce settings.
type SearchConfig struct {
	DebounceMS       int  `yaml:"debounce_ms"`
	FetchConcurrency int  `yaml:"fetch_concurrency"`
	SupersedeStale   bool `yaml:"supersede_stale"`
	DefaultLimit     int  `yaml:"default_limit"`
}

// Debounce returns the quiet period before a search runs.
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// JobsConfig holds status polling settings.
type JobsConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
}

// PollInterval returns the delay between status polls.
func (j JobsConfig) PollInterval() time.Duration {
	return time.Duration(j.PollIntervalMS) * time.Millisecond
}

// RemoteConfig points the CLI at a running server instead of the local database.
type RemoteConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Token             string  `yaml:"token"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Timeout returns the HTTP client timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
