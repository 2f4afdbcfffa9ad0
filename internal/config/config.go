package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-project directory holding config, logs and history.
const DirName = ".stager"

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath overrides the history database location (default: $STAGER_HOME/history/runs.db)
	DBPath string `yaml:"db_path"`
}

// Config represents stager configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written (empty disables file logs)
	LogDir string `yaml:"log_dir"`

	// Atomic stages into a temporary sibling directory and swaps it into place
	Atomic bool `yaml:"atomic"`

	// LockTimeout is how long to wait for another run to release a destination
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		LogDir:      filepath.Join(DirName, "logs"),
		Atomic:      false,
		LockTimeout: 10 * time.Second,
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "",
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// A missing file yields the defaults; a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings ("10s"); presence is detected via pointers
	// so an explicit false/empty still overrides the default.
	type yamlHistory struct {
		Enabled *bool   `yaml:"enabled"`
		DBPath  *string `yaml:"db_path"`
	}
	type yamlConfig struct {
		LogLevel    *string      `yaml:"log_level"`
		LogDir      *string      `yaml:"log_dir"`
		Atomic      *bool        `yaml:"atomic"`
		LockTimeout *string      `yaml:"lock_timeout"`
		History     *yamlHistory `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.LogLevel != nil {
		cfg.LogLevel = *yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != nil {
		cfg.LogDir = *yamlCfg.LogDir
	}
	if yamlCfg.Atomic != nil {
		cfg.Atomic = *yamlCfg.Atomic
	}
	if yamlCfg.LockTimeout != nil {
		timeout, err := time.ParseDuration(*yamlCfg.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid lock_timeout format %q: %w", *yamlCfg.LockTimeout, err)
		}
		cfg.LockTimeout = timeout
	}
	if h := yamlCfg.History; h != nil {
		if h.Enabled != nil {
			cfg.History.Enabled = *h.Enabled
		}
		if h.DBPath != nil {
			cfg.History.DBPath = *h.DBPath
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .stager/config.yaml in the specified directory
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DirName, "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(logLevel *string, logDir *string, atomic *bool, lockTimeout *time.Duration, historyEnabled *bool) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if atomic != nil {
		c.Atomic = *atomic
	}
	if lockTimeout != nil {
		c.LockTimeout = *lockTimeout
	}
	if historyEnabled != nil {
		c.History.Enabled = *historyEnabled
	}
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.LockTimeout < 0 {
		return fmt.Errorf("lock_timeout must be >= 0, got %v", c.LockTimeout)
	}

	return nil
}

// Marshal renders the configuration as YAML in the on-disk format.
func (c *Config) Marshal() ([]byte, error) {
	out := map[string]interface{}{
		"log_level":    c.LogLevel,
		"log_dir":      c.LogDir,
		"atomic":       c.Atomic,
		"lock_timeout": c.LockTimeout.String(),
		"history": map[string]interface{}{
			"enabled": c.History.Enabled,
			"db_path": c.History.DBPath,
		},
	}
	return yaml.Marshal(out)
}
