package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applies defaults and
// validates the result. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	if cfg.APIVersion != "" && cfg.APIVersion != APIVersion {
		return nil, fmt.Errorf("unsupported apiVersion: %s (expected %s)", cfg.APIVersion, APIVersion)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Defaults.MaxTurns < 0 {
		return fmt.Errorf("defaults.max_turns must be >= 0, got %d", c.Defaults.MaxTurns)
	}
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level %q: must be one of %v", c.Logging.Level, validLogLevels)
	}
	if !slices.Contains(validLogFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format %q: must be one of %v", c.Logging.Format, validLogFormats)
	}
	if !slices.Contains(validOutputFormats, c.Output.Format) {
		return fmt.Errorf("output.format %q: must be one of %v", c.Output.Format, validOutputFormats)
	}
	return nil
}

// applyDefaults fills in unset fields.
func (c *Config) applyDefaults() {
	if c.Defaults.MaxTurns == 0 {
		c.Defaults.MaxTurns = DefaultMaxTurns
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Output.Format == "" {
		c.Output.Format = DefaultOutputFormat
	}
}
