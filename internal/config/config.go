// Package config loads the streetnet command configuration.
//
// Configuration comes from a single YAML file named by the --config flag
// or, failing that, the STREETNET_CONFIG environment variable. There is no
// automatic discovery. Without a file the defaults apply, and command-line
// flags override both.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "STREETNET_CONFIG"

// Config is the configuration of the streetnet command.
type Config struct {
	// Workers is the number of decode goroutines.
	// Default: number of CPUs + 1
	Workers int `yaml:"workers"`

	// NodeScope selects how way node ids are resolved: "global" merges
	// the nodes of all blocks, "block" resolves each way against the
	// nodes of its own block only.
	// Default: global
	NodeScope string `yaml:"node_scope"`

	// Log configures diagnostic output.
	Log LogConfig `yaml:"log"`

	// Output configures the street network encoding.
	Output OutputConfig `yaml:"output"`

	// Metrics configures metric export.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures diagnostic output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// OutputConfig configures the street network encoding.
type OutputConfig struct {
	// Format is "geojson" or "cbor".
	Format string `yaml:"format"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// File receives the metrics in Prometheus text format after each run.
	// Empty disables export.
	File string `yaml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Workers:   runtime.NumCPU() + 1,
		NodeScope: "global",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "geojson",
		},
	}
}

// Load reads the file at path over the defaults. An empty path falls back
// to STREETNET_CONFIG; when both are empty the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	switch c.NodeScope {
	case "global", "block":
	default:
		errs = append(errs, fmt.Errorf("invalid node_scope: %q", c.NodeScope))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level: %q", c.Log.Level))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format: %q", c.Log.Format))
	}

	switch c.Output.Format {
	case "geojson", "cbor":
	default:
		errs = append(errs, fmt.Errorf("invalid output.format: %q", c.Output.Format))
	}

	return errors.Join(errs...)
}
