package internal

import (
	"fmt"

	"github.com/ryanmoran/testbed/config"
)

const (
	// DefaultTests is the number of tests the check command runs per class.
	DefaultTests = 2

	// DefaultLogLevel is used when neither the config file nor
	// TESTBED_LOG_LEVEL sets one.
	DefaultLogLevel = "info"
)

// Config holds the settings of the testbed CLI.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Tests    int            `mapstructure:"tests"`
	Fixtures FixturesConfig `mapstructure:"fixtures"`
}

// FixturesConfig selects the fixtures exercised by the check command.
// Run names container specs configured under fixtures.containers.specs.
type FixturesConfig struct {
	Files  bool     `mapstructure:"files"`
	Git    bool     `mapstructure:"git"`
	SQLite bool     `mapstructure:"sqlite"`
	NATS   bool     `mapstructure:"nats"`
	Run    []string `mapstructure:"run"`
}

// SetDefaults registers the defaults of every CLI setting on src, which also
// makes each setting overridable through its TESTBED_* variable.
func SetDefaults(src *config.Source) {
	src.SetDefault("log_level", DefaultLogLevel)
	src.SetDefault("tests", DefaultTests)
	src.SetDefault("fixtures.files", true)
	src.SetDefault("fixtures.git", false)
	src.SetDefault("fixtures.sqlite", false)
	src.SetDefault("fixtures.nats", false)
	src.SetDefault("fixtures.run", []string{})
}

// LoadConfig reads the config file at path, if any, on top of the defaults
// and returns the CLI configuration.
func LoadConfig(src *config.Source, path string) (Config, error) {
	SetDefaults(src)

	if path != "" {
		if err := src.ReadFile(path); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := src.Viper().Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.Tests < 1 {
		return Config{}, fmt.Errorf("invalid number of tests %d: must be at least 1", cfg.Tests)
	}
	return cfg, nil
}
