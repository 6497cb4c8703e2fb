// Package config loads irdrowsy configuration: built-in defaults, then an
// optional YAML file, then IRDROWSY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/irdrowsy/pkg/control"
	"github.com/teslashibe/irdrowsy/pkg/drowsy/landmarks"
	"github.com/teslashibe/irdrowsy/pkg/present"
	"github.com/teslashibe/irdrowsy/pkg/source"
)

// EnvPrefix prefixes every environment override, e.g. IRDROWSY_ADDR.
const EnvPrefix = "IRDROWSY"

// Config aggregates all application configuration.
type Config struct {
	Source    source.Config    `yaml:"source" envconfig:"SOURCE"`
	Landmarks landmarks.Config `yaml:"landmarks" envconfig:"LANDMARKS"`
	Settings  control.Settings `yaml:"settings" envconfig:"SETTINGS"`

	// Interval between presenter ticks.
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL"`

	// SnapshotDir receives images saved with 'c' or POST /api/snapshot.
	SnapshotDir string `yaml:"snapshot_dir" envconfig:"SNAPSHOT_DIR"`

	// Addr is the control API listen address. Empty disables the API.
	Addr string `yaml:"addr" envconfig:"ADDR"`

	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// Headless skips the preview window.
	Headless bool `yaml:"headless" envconfig:"HEADLESS"`

	// AutoStart opens the camera at launch instead of waiting for /api/start.
	AutoStart bool `yaml:"auto_start" envconfig:"AUTO_START"`

	// MockDetector replaces the landmark models with a synthetic open-eyed face.
	MockDetector bool `yaml:"mock_detector" envconfig:"MOCK_DETECTOR"`
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		Source:      source.DefaultConfig(),
		Landmarks:   landmarks.DefaultConfig(),
		Settings:    control.DefaultSettings(),
		Interval:    present.DefaultInterval,
		SnapshotDir: "result",
		Addr:        ":8080",
		LogLevel:    "info",
		AutoStart:   true,
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Source.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if !c.MockDetector {
		if err := c.Landmarks.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("landmarks: %w", err))
		}
	}
	if problems := c.Settings.Validate(); len(problems) > 0 {
		errs = append(errs, fmt.Errorf("settings: %s", strings.Join(problems, "; ")))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %v", c.Interval))
	}
	if c.SnapshotDir == "" {
		errs = append(errs, errors.New("snapshot_dir must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
