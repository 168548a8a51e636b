package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/ngraph/internal/binding"
	"github.com/born-ml/ngraph/internal/parallel"
)

// Config holds the CLI settings read from a YAML file.
type Config struct {
	Timeout     time.Duration   `yaml:"timeout"`
	MetricsAddr string          `yaml:"metrics_addr"`
	Parallel    parallel.Config `yaml:"parallel"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Timeout:  binding.DefaultTimeout,
		Parallel: parallel.DefaultConfig(),
	}
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks for values the binding cannot use.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.Parallel.NumWorkers < 0 {
		return errors.New("parallel.workers must not be negative")
	}
	if c.Parallel.MinChunkSize < 0 {
		return errors.New("parallel.min_chunk must not be negative")
	}
	return nil
}

// Options converts the config into binding options.
func (c Config) Options() []binding.Option {
	return []binding.Option{
		binding.WithTimeout(c.Timeout),
		binding.WithParallel(c.Parallel),
	}
}
