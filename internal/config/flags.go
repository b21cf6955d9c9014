package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagNoPVS  = flag.Bool("nopvs", false, "Disable PVS culling (every face visible)")
	flagLevel  = flag.Int("level", 0, "Patch tessellation level")
	flagScale  = flag.Float64("scale", 0, "World scale for mesh conversion")
	flagGamma  = flag.Float64("gamma", 0, "Lightmap gamma factor")
	flagData   = flag.String("data", "", "Extra map directory or archive")

	flagSaveConfig = flag.Bool("save-config", false, "Write the effective config to the user config directory")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether -save-config was given.
func SaveRequested() bool {
	return *flagSaveConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagNoPVS {
		cfg.Visibility.UsePVS = false
	}
	if *flagLevel > 0 {
		cfg.Mesh.PatchLevel = *flagLevel
	}
	if *flagScale > 0 {
		cfg.Mesh.WorldScale = float32(*flagScale)
	}
	if *flagGamma > 0 {
		cfg.Lightmap.Gamma = *flagGamma
	}
	if *flagData != "" {
		cfg.Data.Paths = append(cfg.Data.Paths, *flagData)
	}
}
