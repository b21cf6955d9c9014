package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		DefaultPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "csbsp")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "csbsp")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "csbsp")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "csbsp")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects settings the tools cannot work with.
func (c *Config) Validate() error {
	if c.Mesh.PatchLevel < 1 {
		return fmt.Errorf("%w: patch_level %d must be at least 1", ErrInvalidConfig, c.Mesh.PatchLevel)
	}
	if c.Mesh.WorldScale <= 0 {
		return fmt.Errorf("%w: world_scale %v must be positive", ErrInvalidConfig, c.Mesh.WorldScale)
	}
	if c.Lightmap.Gamma <= 0 {
		return fmt.Errorf("%w: gamma %v must be positive", ErrInvalidConfig, c.Lightmap.Gamma)
	}
	if c.Lightmap.Scale < 1 {
		return fmt.Errorf("%w: lightmap scale %d must be at least 1", ErrInvalidConfig, c.Lightmap.Scale)
	}
	return nil
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")
