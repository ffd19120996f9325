// Package config loads timerstub tool configuration.
//
// A config file sets the defaults scenarios run with when they do not set
// their own, plus logging, output and metrics preferences for the CLI:
//
//	apiVersion: timerstub/v1
//	defaults:
//	  start: 1000000
//	  auto_advance: 0
//	  max_turns: 100000
//	logging:
//	  level: warn
//	  format: console
//	output:
//	  format: table
//	metrics:
//	  enabled: true
package config

// APIVersion is the only apiVersion accepted in config files. It may be
// omitted.
const APIVersion = "timerstub/v1"

// Config is the root configuration for timerstub.
type Config struct {
	APIVersion string      `yaml:"apiVersion,omitempty"`
	Defaults   DefaultsCfg `yaml:"defaults,omitempty"`
	Logging    LoggingCfg  `yaml:"logging,omitempty"`
	Output     OutputCfg   `yaml:"output,omitempty"`
	Metrics    MetricsCfg  `yaml:"metrics,omitempty"`
}

// DefaultsCfg holds values applied to scenarios that leave them unset.
type DefaultsCfg struct {
	// Start is the initial virtual time in milliseconds. Nil means the
	// scheduler default.
	Start *int64 `yaml:"start,omitempty"`

	AutoAdvance Millis `yaml:"auto_advance,omitempty"`

	// MaxTurns bounds each drain so a live interval cannot hang a run.
	MaxTurns int `yaml:"max_turns,omitempty"`
}

// LoggingCfg configures the CLI logger.
type LoggingCfg struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // console, text, json
}

// OutputCfg configures how run results are printed.
type OutputCfg struct {
	Format string `yaml:"format,omitempty"` // table, json
}

// MetricsCfg controls the metrics summary printed after a run.
type MetricsCfg struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

const (
	DefaultMaxTurns     = 100000
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "console"
	DefaultOutputFormat = "table"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validLogFormats    = []string{"console", "text", "json"}
	validOutputFormats = []string{"table", "json"}
)
