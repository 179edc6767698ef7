// Package config loads and defaults toollib's YAML configuration: where
// the catalog database and blob store live, size limits, and logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all toollib configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
	Sweep   SweepConfig   `yaml:"sweep"`
}

// StoreConfig locates the catalog database and the blob store root.
type StoreConfig struct {
	// StateDir holds the catalog database file and the logs/ directory.
	StateDir string `yaml:"state_dir"`
	// DatabaseFile is the catalog's SQLite file name, resolved under StateDir.
	DatabaseFile string `yaml:"database_file"`
	// StoreRoot is the directory containing the tools/ blob tree.
	StoreRoot string `yaml:"store_root"`
}

// LimitsConfig bounds inbound file sizes, matching spec.md defaults.
type LimitsConfig struct {
	MaxFileSizeBytes  int64 `yaml:"max_file_size_bytes"`
	MaxTotalSizeBytes int64 `yaml:"max_total_size_bytes"`
}

// LoggingConfig holds logging settings in the YAML file. internal/logging
// does not read them: it takes its settings from <state-dir>/logging.json.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// SweepConfig holds orphan-reconciliation settings in the YAML file. The
// sweep command does not read them: watch mode is chosen by its --watch flag
// and the debounce window is sweep.DefaultDebounce.
type SweepConfig struct {
	WatchEnabled   bool `yaml:"watch_enabled"`
	DebounceMillis int  `yaml:"debounce_millis"`
}

const (
	defaultDatabaseFile = "toollib.db"
	defaultAppName      = "codenerd-toollib"
)

// DefaultConfig returns baseline configuration rooted under the user's
// standard config/cache directories.
func DefaultConfig() *Config {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		configDir = "."
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil || cacheDir == "" {
		cacheDir = "."
	}

	return &Config{
		Store: StoreConfig{
			StateDir:     filepath.Join(configDir, defaultAppName),
			DatabaseFile: defaultDatabaseFile,
			StoreRoot:    filepath.Join(cacheDir, defaultAppName),
		},
		Limits: LimitsConfig{
			MaxFileSizeBytes:  50 * 1024 * 1024,
			MaxTotalSizeBytes: 200 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Sweep: SweepConfig{
			WatchEnabled:   false,
			DebounceMillis: 2000,
		},
	}
}

// DatabasePath returns the absolute path to the catalog database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Store.StateDir, c.Store.DatabaseFile)
}

// Load reads YAML configuration from path, falling back to defaults for
// any field left unset and to an entirely default Config if path does not
// exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
