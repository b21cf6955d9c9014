package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.Data.Paths) != 1 || cfg.Data.Paths[0] != "." {
		t.Errorf("expected data paths [.], got %v", cfg.Data.Paths)
	}
	if !cfg.Visibility.UsePVS {
		t.Error("expected use_pvs to be true by default")
	}
	if cfg.Mesh.PatchLevel != 5 {
		t.Errorf("expected patch level 5, got %d", cfg.Mesh.PatchLevel)
	}
	if cfg.Mesh.WorldScale != 0.03 {
		t.Errorf("expected world scale 0.03, got %f", cfg.Mesh.WorldScale)
	}
	if cfg.Mesh.KeepCoordinates {
		t.Error("expected keep_coordinates to be false by default")
	}
	if cfg.Lightmap.Gamma != 1.2 {
		t.Errorf("expected gamma 1.2, got %f", cfg.Lightmap.Gamma)
	}
	if cfg.Lightmap.Scale != 1 {
		t.Errorf("expected lightmap scale 1, got %d", cfg.Lightmap.Scale)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
data:
  paths:
    - "/games/cstrike/maps"
    - "/games/baseq3/pak0.pk3"

visibility:
  use_pvs: false

mesh:
  patch_level: 8
  world_scale: 0.5
  keep_coordinates: true

lightmap:
  gamma: 2.0
  scale: 4

logging:
  level: "debug"
  log_file: "bsptool.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Data.Paths) != 2 || cfg.Data.Paths[1] != "/games/baseq3/pak0.pk3" {
		t.Errorf("unexpected data paths %v", cfg.Data.Paths)
	}
	if cfg.Visibility.UsePVS {
		t.Error("expected use_pvs to be false")
	}
	if cfg.Mesh.PatchLevel != 8 {
		t.Errorf("expected patch level 8, got %d", cfg.Mesh.PatchLevel)
	}
	if cfg.Mesh.WorldScale != 0.5 {
		t.Errorf("expected world scale 0.5, got %f", cfg.Mesh.WorldScale)
	}
	if !cfg.Mesh.KeepCoordinates {
		t.Error("expected keep_coordinates to be true")
	}
	if cfg.Lightmap.Gamma != 2.0 {
		t.Errorf("expected gamma 2.0, got %f", cfg.Lightmap.Gamma)
	}
	if cfg.Lightmap.Scale != 4 {
		t.Errorf("expected lightmap scale 4, got %d", cfg.Lightmap.Scale)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "bsptool.log" {
		t.Errorf("expected log file 'bsptool.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
mesh:
  patch_level: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero patch level", func(c *Config) { c.Mesh.PatchLevel = 0 }},
		{"negative world scale", func(c *Config) { c.Mesh.WorldScale = -1 }},
		{"zero gamma", func(c *Config) { c.Lightmap.Gamma = 0 }},
		{"zero lightmap scale", func(c *Config) { c.Lightmap.Scale = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
	if filepath.Base(dir) != "csbsp" {
		t.Errorf("ConfigDir should end in csbsp, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	os.Chdir(tmpDir)

	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("mesh:\n  patch_level: 3\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Mesh.PatchLevel = 7
	cfg.Data.Paths = []string{"maps", "pak0.pak"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if loaded.Mesh.PatchLevel != 7 {
		t.Errorf("expected patch level 7, got %d", loaded.Mesh.PatchLevel)
	}
	if len(loaded.Data.Paths) != 2 || loaded.Data.Paths[1] != "pak0.pak" {
		t.Errorf("unexpected data paths %v", loaded.Data.Paths)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name: "debug flag",
			setup: func() {
				*flagDebug = true
			},
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() {
				*flagDebug = false
			},
		},
		{
			name: "nopvs flag",
			setup: func() {
				*flagNoPVS = true
			},
			verify: func(cfg *Config) {
				if cfg.Visibility.UsePVS {
					t.Error("expected use_pvs to be false with nopvs flag")
				}
			},
			teardown: func() {
				*flagNoPVS = false
			},
		},
		{
			name: "level and scale flags",
			setup: func() {
				*flagLevel = 9
				*flagScale = 1
			},
			verify: func(cfg *Config) {
				if cfg.Mesh.PatchLevel != 9 {
					t.Errorf("expected patch level 9, got %d", cfg.Mesh.PatchLevel)
				}
				if cfg.Mesh.WorldScale != 1 {
					t.Errorf("expected world scale 1, got %f", cfg.Mesh.WorldScale)
				}
			},
			teardown: func() {
				*flagLevel = 0
				*flagScale = 0
			},
		},
		{
			name: "gamma flag",
			setup: func() {
				*flagGamma = 1.8
			},
			verify: func(cfg *Config) {
				if cfg.Lightmap.Gamma != 1.8 {
					t.Errorf("expected gamma 1.8, got %f", cfg.Lightmap.Gamma)
				}
			},
			teardown: func() {
				*flagGamma = 0
			},
		},
		{
			name: "data flag appends",
			setup: func() {
				*flagData = "/tmp/pak0.pk3"
			},
			verify: func(cfg *Config) {
				if len(cfg.Data.Paths) != 2 || cfg.Data.Paths[1] != "/tmp/pak0.pk3" {
					t.Errorf("unexpected data paths %v", cfg.Data.Paths)
				}
			},
			teardown: func() {
				*flagData = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
mesh:
  patch_level: 3
  world_scale: 0.25
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagLevel = 6
	defer func() {
		*flagConfig = ""
		*flagLevel = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Level from flag, scale from file
	if cfg.Mesh.PatchLevel != 6 {
		t.Errorf("expected patch level 6 from flag, got %d", cfg.Mesh.PatchLevel)
	}
	if cfg.Mesh.WorldScale != 0.25 {
		t.Errorf("expected world scale 0.25 from file, got %f", cfg.Mesh.WorldScale)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("lightmap:\n  gamma: -1\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSave(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config dir is only redirectable through XDG_CONFIG_HOME on linux")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	*flagSaveConfig = true
	defer func() { *flagSaveConfig = false }()
	if !SaveRequested() {
		t.Fatal("expected save to be requested")
	}

	cfg := Default()
	cfg.Visibility.UsePVS = false
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if filepath.Base(filepath.Dir(DefaultPath())) != "csbsp" {
		t.Errorf("unexpected default path %s", DefaultPath())
	}
	loaded := Default()
	if err := loadFromFile(loaded, DefaultPath()); err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if loaded.Visibility.UsePVS {
		t.Error("expected use_pvs false after round trip")
	}
}
