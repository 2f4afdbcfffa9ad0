package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv names the environment variable that overrides the stager home.
const HomeEnv = "STAGER_HOME"

// GetStagerHome returns the stager home directory.
// Priority order:
//  1. STAGER_HOME environment variable (if set)
//  2. .stager under the current working directory
//
// The directory is created if it doesn't exist.
func GetStagerHome() (string, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		home = filepath.Join(cwd, DirName)
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create stager home directory: %w", err)
	}
	return home, nil
}

// ResolveHistoryDBPath returns the history database path for cfg: the
// configured db_path when set, otherwise $STAGER_HOME/history/runs.db.
func (c *Config) ResolveHistoryDBPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}
	home, err := GetStagerHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history", "runs.db"), nil
}
