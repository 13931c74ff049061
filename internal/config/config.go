package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ligustah/seqdl/internal/progress"
)

// Config defines configuration for the seqdl CLI.
type Config struct {
	Source    string      `yaml:"source"`
	Key       string      `yaml:"key"`
	Output    string      `yaml:"output"`
	Workers   int         `yaml:"workers"`
	PartSize  int64       `yaml:"part_size"`
	Window    int         `yaml:"window"`
	Progress  bool        `yaml:"progress"`
	AllowGaps bool        `yaml:"allow_gaps"`
	Unordered bool        `yaml:"unordered"`
	Manifest  bool        `yaml:"manifest"`
	Verify    bool        `yaml:"verify"`
	LogLevel  string      `yaml:"log_level"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:  8,
		PartSize: 8 * 1024 * 1024, // 8 MiB
		LogLevel: "info",
		Retry: RetryConfig{
			Attempts:   3,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with a human-readable part size
// and string durations.
type yamlConfig struct {
	Source    string          `yaml:"source"`
	Key       string          `yaml:"key"`
	Output    string          `yaml:"output"`
	Workers   int             `yaml:"workers"`
	PartSize  string          `yaml:"part_size"`
	Window    int             `yaml:"window"`
	Progress  bool            `yaml:"progress"`
	AllowGaps bool            `yaml:"allow_gaps"`
	Unordered bool            `yaml:"unordered"`
	Manifest  bool            `yaml:"manifest"`
	Verify    bool            `yaml:"verify"`
	LogLevel  string          `yaml:"log_level"`
	Retry     yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file. Fields missing from
// the file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	override := Config{
		Source:    yc.Source,
		Key:       yc.Key,
		Output:    yc.Output,
		Workers:   yc.Workers,
		Window:    yc.Window,
		Progress:  yc.Progress,
		AllowGaps: yc.AllowGaps,
		Unordered: yc.Unordered,
		Manifest:  yc.Manifest,
		Verify:    yc.Verify,
		LogLevel:  yc.LogLevel,
		Retry:     RetryConfig{Attempts: yc.Retry.Attempts},
	}
	if yc.PartSize != "" {
		size, err := progress.ParseBytes(yc.PartSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse part_size: %w", err)
		}
		override.PartSize = size
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		override.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		override.Retry.MaxBackoff = d
	}

	return Default().Merge(override), nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SEQDL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SEQDL_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("SEQDL_KEY"); v != "" {
		c.Key = v
	}
	if v := os.Getenv("SEQDL_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("SEQDL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SEQDL_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("SEQDL_PART_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse SEQDL_PART_SIZE: %w", err)
		}
		c.PartSize = size
	}
	if v := os.Getenv("SEQDL_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SEQDL_WINDOW: %w", err)
		}
		c.Window = n
	}
	if v := os.Getenv("SEQDL_PROGRESS"); v != "" {
		c.Progress = isTrue(v)
	}
	if v := os.Getenv("SEQDL_ALLOW_GAPS"); v != "" {
		c.AllowGaps = isTrue(v)
	}
	if v := os.Getenv("SEQDL_UNORDERED"); v != "" {
		c.Unordered = isTrue(v)
	}
	if v := os.Getenv("SEQDL_MANIFEST"); v != "" {
		c.Manifest = isTrue(v)
	}
	if v := os.Getenv("SEQDL_VERIFY"); v != "" {
		c.Verify = isTrue(v)
	}
	if v := os.Getenv("SEQDL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SEQDL_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SEQDL_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("SEQDL_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SEQDL_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("SEQDL_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SEQDL_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

func isTrue(v string) bool {
	return v == "true" || v == "1"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("config: source is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.PartSize <= 0 {
		return errors.New("config: part_size must be positive")
	}
	if c.Window < 0 {
		return errors.New("config: window must not be negative")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry.attempts must not be negative")
	}
	if c.Unordered && c.Output == "" {
		return errors.New("config: unordered downloads need an output file")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return level, nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Source != "" {
		c.Source = override.Source
	}
	if override.Key != "" {
		c.Key = override.Key
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.PartSize != 0 {
		c.PartSize = override.PartSize
	}
	if override.Window != 0 {
		c.Window = override.Window
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.AllowGaps {
		c.AllowGaps = override.AllowGaps
	}
	if override.Unordered {
		c.Unordered = override.Unordered
	}
	if override.Manifest {
		c.Manifest = override.Manifest
	}
	if override.Verify {
		c.Verify = override.Verify
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
