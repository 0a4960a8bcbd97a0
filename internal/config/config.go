// Package config handles tool configuration loading and management.
package config

// Config holds all settings.
type Config struct {
	Library LibraryConfig `yaml:"library"`
	Build   BuildConfig   `yaml:"build"`
	Logging LoggingConfig `yaml:"logging"`
}

// LibraryConfig holds part-library source locations.
type LibraryConfig struct {
	Archives []string `yaml:"archives"` // Paths to zip part-library archives
	Dirs     []string `yaml:"dirs"`     // Paths to unpacked part directories
}

// BuildConfig holds geometry build settings.
type BuildConfig struct {
	// ReleaseSteps discards raw step data after geometry is built to
	// reclaim memory.
	ReleaseSteps bool `yaml:"release_steps"`
	// PackOfficial emits packed geometry payloads for official leaf
	// parts, for external caching.
	PackOfficial bool `yaml:"pack_official"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Library: LibraryConfig{
			Archives: []string{"complete.zip"},
		},
		Build: BuildConfig{
			ReleaseSteps: false,
			PackOfficial: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
