// Package config loads the store's directory configuration from the
// environment, with JSON file overrides merged global-then-local.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the two paths that locate a store on disk.
type Config struct {
	StoreDir string `json:"store_dir"`
	StateDir string `json:"state_dir"`
}

const (
	envStoreDir = "CASTORE_STORE_DIR"
	envStateDir = "CASTORE_STATE_DIR"

	defaultStoreDir = "/nix/store"
	defaultStateDir = "/nix/var/nix"
)

// DefaultConfig returns a Config from built-in defaults, overridden by
// CASTORE_STORE_DIR and CASTORE_STATE_DIR when set.
func DefaultConfig() *Config {
	cfg := &Config{StoreDir: defaultStoreDir, StateDir: defaultStateDir}
	if v := os.Getenv(envStoreDir); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv(envStateDir); v != "" {
		cfg.StateDir = v
	}
	return cfg
}

// globalConfigPath returns the path to the per-user config file.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".castoreconfig"), nil
}

// localConfigPath returns the path to a config file in the current
// directory, which overrides the global one.
func localConfigPath() string {
	return filepath.Join(".castore", "config")
}

// Load builds a Config starting from environment-derived defaults, then
// merges the global config file (if present), then the local one (if
// present) over it. Each file's fields only override when non-empty, so a
// partial override file doesn't blank out the other path.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if globalPath, err := globalConfigPath(); err == nil {
		if data, err := os.ReadFile(globalPath); err == nil {
			var fileCfg Config
			if err := json.Unmarshal(data, &fileCfg); err == nil {
				merge(cfg, &fileCfg)
			}
		}
	}

	if data, err := os.ReadFile(localConfigPath()); err == nil {
		var fileCfg Config
		if err := json.Unmarshal(data, &fileCfg); err == nil {
			merge(cfg, &fileCfg)
		}
	}

	return cfg, nil
}

// Save writes cfg as the local config file, creating its directory if
// needed.
func Save(cfg *Config) error {
	path := localConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func merge(dst, src *Config) {
	if src.StoreDir != "" {
		dst.StoreDir = src.StoreDir
	}
	if src.StateDir != "" {
		dst.StateDir = src.StateDir
	}
}
