package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"flowlint/internal/detect"
	"flowlint/internal/quality"
)

type Config struct {
	Detection struct {
		Level         int      `yaml:"level"`
		Verbose       bool     `yaml:"verbose"`
		Degraded      bool     `yaml:"degraded"`       // run line rules when parsing fails
		Globals       []string `yaml:"globals"`        // host identifiers exempt from unused checks
		ConsoleObject string   `yaml:"console_object"` // receiver of console-output calls
		NodeObject    string   `yaml:"node_object"`    // receiver of host warn calls
		IgnoreMarker  string   `yaml:"ignore_marker"`
	} `yaml:"detection"`
	Scoring struct {
		Weights            map[string]float64 `yaml:"weights"`
		CriticalMultiplier float64            `yaml:"critical_multiplier"`
	} `yaml:"scoring"`
	Storage struct {
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"storage"`
	Notify struct {
		WebhookURL string        `yaml:"webhook_url"`
		Timeout    time.Duration `yaml:"timeout"`
		AlertBelow float64       `yaml:"alert_below"` // group score that triggers an alert
	} `yaml:"notify"`
	Scan struct {
		Concurrency      int  `yaml:"concurrency"`
		IncludeLifecycle bool `yaml:"include_lifecycle"` // also scan initialize/finalize code
	} `yaml:"scan"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	host := detect.DefaultHost()
	cfg.Detection.Level = 2
	cfg.Detection.Globals = host.Globals
	cfg.Detection.ConsoleObject = host.ConsoleObject
	cfg.Detection.NodeObject = host.NodeObject
	cfg.Detection.IgnoreMarker = "flowlint-ignore"
	cfg.Scoring.CriticalMultiplier = 1.5
	cfg.Storage.Path = ".flowlint/metrics.db"
	cfg.Storage.RetentionDays = 90
	cfg.Notify.Timeout = 5 * time.Second
	cfg.Notify.AlertBelow = 50
	cfg.Scan.Concurrency = 4
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if level := os.Getenv("FLOWLINT_LEVEL"); level != "" {
		n, err := strconv.Atoi(level)
		if err != nil {
			return nil, fmt.Errorf("FLOWLINT_LEVEL: %w", err)
		}
		cfg.Detection.Level = n
	}
	if db := os.Getenv("FLOWLINT_DB"); db != "" {
		cfg.Storage.Path = db
	}
	if url := os.Getenv("FLOWLINT_WEBHOOK_URL"); url != "" {
		cfg.Notify.WebhookURL = url
	}
	if verbose := os.Getenv("FLOWLINT_VERBOSE"); verbose != "" {
		v, err := strconv.ParseBool(verbose)
		if err != nil {
			return nil, fmt.Errorf("FLOWLINT_VERBOSE: %w", err)
		}
		cfg.Detection.Verbose = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Detection.Level < detect.MinLevel || c.Detection.Level > detect.MaxLevel {
		return fmt.Errorf("detection.level must be between %d and %d, got %d", detect.MinLevel, detect.MaxLevel, c.Detection.Level)
	}
	if err := c.Weights().Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if c.Scoring.CriticalMultiplier < 0 {
		return fmt.Errorf("scoring.critical_multiplier must be non-negative")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be positive, got %d", c.Scan.Concurrency)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must be non-negative")
	}
	return nil
}

// Host returns the detection host environment.
func (c *Config) Host() detect.Host {
	return detect.Host{
		Globals:       c.Detection.Globals,
		ConsoleObject: c.Detection.ConsoleObject,
		NodeObject:    c.Detection.NodeObject,
	}
}

// Weights returns the configured weight overrides keyed by issue kind.
func (c *Config) Weights() quality.Weights {
	w := make(quality.Weights, len(c.Scoring.Weights))
	for k, v := range c.Scoring.Weights {
		w[detect.Kind(k)] = v
	}
	return w
}

// Options returns the per-call detection options.
func (c *Config) Options() detect.Options {
	return detect.Options{Verbose: c.Detection.Verbose, Degraded: c.Detection.Degraded}
}
