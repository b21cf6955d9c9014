// Package config handles bsptool configuration loading and management.
package config

// Config holds all tool settings.
type Config struct {
	Data       DataConfig       `yaml:"data"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Lightmap   LightmapConfig   `yaml:"lightmap"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DataConfig lists where maps are looked up.
type DataConfig struct {
	Paths []string `yaml:"paths"` // Directories or .pak/.pk3 archives, later entries win
}

// VisibilityConfig holds culling settings.
type VisibilityConfig struct {
	UsePVS bool `yaml:"use_pvs"`
}

// MeshConfig holds triangle conversion settings.
type MeshConfig struct {
	PatchLevel      int     `yaml:"patch_level"`
	WorldScale      float32 `yaml:"world_scale"`
	KeepCoordinates bool    `yaml:"keep_coordinates"`
}

// LightmapConfig holds lightmap export settings.
type LightmapConfig struct {
	Gamma float64 `yaml:"gamma"`
	Scale int     `yaml:"scale"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Paths: []string{"."},
		},
		Visibility: VisibilityConfig{
			UsePVS: true,
		},
		Mesh: MeshConfig{
			PatchLevel: 5,
			WorldScale: 0.03,
		},
		Lightmap: LightmapConfig{
			Gamma: 1.2,
			Scale: 1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
