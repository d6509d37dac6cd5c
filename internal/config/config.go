package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/ifnotnil/jobpool/internal/logging"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Name    string `yaml:"name" env:"JOBPOOL_NAME"`
	Workers int    `yaml:"workers" env:"JOBPOOL_WORKERS"`

	Log struct {
		Level  string `yaml:"level" env:"JOBPOOL_LOG_LEVEL"`
		Format string `yaml:"format" env:"JOBPOOL_LOG_FORMAT"`
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr" env:"JOBPOOL_METRICS_ADDR"`
		Path string `yaml:"path" env:"JOBPOOL_METRICS_PATH"`
	} `yaml:"metrics"`
}

func Default() Config {
	var c Config
	c.Name = "default"
	c.Workers = 1
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Metrics.Path = "/metrics"
	return c
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	if c.Workers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = multierr.Append(errs, fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format))
	}
	if c.Metrics.Addr != "" && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		errs = multierr.Append(errs, fmt.Errorf("%w: metrics path must start with /, got %q", ErrInvalid, c.Metrics.Path))
	}
	return errs
}
