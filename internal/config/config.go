// Package config loads run configuration from YAML files and environment
// variables. Environment variables override file values, flags override both.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"deme/internal/model"
)

// Config is the full configuration of one demectl invocation.
type Config struct {
	// Params configures the simulated process itself.
	Params model.Params `yaml:"params" envPrefix:"DEME_"`

	// Trials is the number of independent replicates per configuration.
	Trials int `yaml:"trials" env:"DEME_TRIALS"`

	// Seed is the base seed; per-trial streams are derived from it. When
	// left zero a seed is drawn from the clock and recorded in the summary.
	Seed int64 `yaml:"seed" env:"DEME_SEED"`

	// Workers caps the worker pool. Zero means one worker per CPU.
	Workers int `yaml:"workers" env:"DEME_WORKERS"`

	// Store selects the persistence backend: "memory" or "sqlite".
	Store     string `yaml:"store" env:"DEME_STORE"`
	StorePath string `yaml:"store_path" env:"DEME_STORE_PATH"`

	// ArtifactsDir is where run directories and the run index are written.
	ArtifactsDir string `yaml:"artifacts_dir" env:"DEME_ARTIFACTS_DIR"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"DEME_LOG_LEVEL"`
}

// Default is the starting configuration before file, env, and flag layers.
func Default() Config {
	return Config{
		Params: model.Params{
			GroupSize:      5,
			GroupCount:     10,
			Benefit:        3,
			Cost:           1,
			Ingroup:        0.8,
			Selection:      0.5,
			Conflict:       0.025,
			Steepness:      0.5,
			Migration:      0.2,
			SplitProb:      0.5,
			Mutant:         model.Altruist,
			MaxGenerations: 10_000_000,
		},
		Trials:       1000,
		Workers:      0,
		Store:        "memory",
		StorePath:    "deme.db",
		ArtifactsDir: "artifacts",
		LogLevel:     "info",
	}
}

// Load layers a YAML file (when path is non-empty) and environment variables
// on top of the defaults. Validation is left to the caller so flag overrides
// can apply first.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the layered configuration as a whole.
func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.Trials <= 0 {
		return fmt.Errorf("trials must be > 0, got %d", c.Trials)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	switch c.Store {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.LogLevel)
	}
	return nil
}
