package app

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// PipelineConfig tunes correlation and injection
type PipelineConfig struct {
	ToleranceSeconds float64 `yaml:"toleranceSeconds"`
	OffsetHours      float64 `yaml:"offsetHours"`
	Workers          int     `yaml:"workers"`
}

// StorageConfig represents run-recording settings. An empty data
// directory disables recording.
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// Options are the per-run command line arguments.
type Options struct {
	ImageDir         string
	OutputDir        string
	PositionsPath    string
	OrientationsPath string
	ApplyOffset      bool
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return config, nil
}

// SlogLevel parses the configured log level.
func (s Settings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}
