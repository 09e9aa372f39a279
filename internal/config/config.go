// Package config loads image-search settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-search-mcp/internal/match"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "IMAGE_SEARCH_CONFIG"

// EnvLogLevel overrides Log.Level when set.
const EnvLogLevel = "IMAGE_SEARCH_LOG_LEVEL"

// DefaultPath is used when EnvPath is unset.
const DefaultPath = "image-search.yaml"

// MaxLevels bounds the pyramid length a config may request.
const MaxLevels = match.MaxLevels

// Config holds runtime configuration for every transport.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Canny   CannyConfig   `yaml:"canny"`
	HTTP    HTTPConfig    `yaml:"http"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
	Debug   DebugConfig   `yaml:"debug"`
}

// SearchConfig holds the defaults applied to requests that omit them.
type SearchConfig struct {
	Threshold    float64 `yaml:"threshold"`
	Levels       int     `yaml:"levels"`
	IoUThreshold float64 `yaml:"iou_threshold"`
	// Matcher is "ncc" (built in) or "opencv" (requires -tags gocv).
	Matcher string `yaml:"matcher"`
}

// CannyConfig holds the edge thresholds used in canny mode.
type CannyConfig struct {
	Low  int `yaml:"low"`
	High int `yaml:"high"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig controls the process sampler. An empty Addr serves
// /metrics from the HTTP API only.
type MetricsConfig struct {
	Addr           string        `yaml:"addr"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DebugConfig enables request dumps. An empty Dir disables them.
type DebugConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Threshold:    match.DefaultThreshold,
			Levels:       match.DefaultLevels,
			IoUThreshold: match.DefaultIoUThreshold,
			Matcher:      "ncc",
		},
		Canny: CannyConfig{Low: 50, High: 150},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Metrics: MetricsConfig{
			SampleInterval: 5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate clamps/normalizes values to safe ranges. Thresholds are not
// range checked beyond NaN, since any value is a valid (if useless) cutoff.
func (c *Config) Validate() error {
	if math.IsNaN(c.Search.Threshold) {
		c.Search.Threshold = match.DefaultThreshold
	}
	if c.Search.Levels < 1 {
		c.Search.Levels = match.DefaultLevels
	}
	if c.Search.Levels > MaxLevels {
		c.Search.Levels = MaxLevels
	}
	switch {
	case math.IsNaN(c.Search.IoUThreshold):
		c.Search.IoUThreshold = match.DefaultIoUThreshold
	case c.Search.IoUThreshold < 0:
		c.Search.IoUThreshold = 0
	case c.Search.IoUThreshold > 1:
		c.Search.IoUThreshold = 1
	}
	if c.Search.Matcher == "" {
		c.Search.Matcher = "ncc"
	}
	if c.Canny.Low < 0 {
		c.Canny.Low = 0
	}
	if c.Canny.High < c.Canny.Low {
		c.Canny.High = c.Canny.Low
	}
	if c.Metrics.SampleInterval <= 0 {
		c.Metrics.SampleInterval = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}

// Load reads configuration from the YAML file at path. A missing file yields
// DefaultConfig(). On a parse error the defaults are returned with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	_ = cfg.Validate()
	return cfg, nil
}

// LoadFromEnv loads the file named by EnvPath, or DefaultPath, and then
// applies EnvLogLevel.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, err
}

// Save writes the configuration to path in YAML format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
