// Package config loads csessync configuration from an optional YAML file,
// falling back to observed defaults for every field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	JudgeBaseURL string
	APIBaseURL   string
	AuthBaseURL  string
	ProblemsRoot string
	FetchTimeout time.Duration

	Publish PublishConfig
	Watch   WatchConfig
}

// PublishConfig carries the publish retry and dedupe knobs.
type PublishConfig struct {
	MaxAttempts  int
	Backoff      time.Duration
	DedupeWindow time.Duration
}

// WatchConfig carries the watcher timing knobs.
type WatchConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// fileConfig mirrors the YAML file layout. Durations are strings in the file
// ("30s", "2s") and parsed on load.
type fileConfig struct {
	JudgeBaseURL string `yaml:"judge_base_url"`
	APIBaseURL   string `yaml:"api_base_url"`
	AuthBaseURL  string `yaml:"auth_base_url"`
	ProblemsRoot string `yaml:"problems_root"`
	FetchTimeout string `yaml:"fetch_timeout"`
	Publish      struct {
		MaxAttempts  int    `yaml:"max_attempts"`
		Backoff      string `yaml:"backoff"`
		DedupeWindow string `yaml:"dedupe_window"`
	} `yaml:"publish"`
	Watch struct {
		Timeout      string `yaml:"timeout"`
		PollInterval string `yaml:"poll_interval"`
	} `yaml:"watch"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		JudgeBaseURL: "https://cses.fi",
		APIBaseURL:   "https://api.github.com",
		AuthBaseURL:  "https://github.com",
		ProblemsRoot: "CSES_Problems",
		FetchTimeout: 10 * time.Second,
		Publish: PublishConfig{
			MaxAttempts:  3,
			Backoff:      1 * time.Second,
			DedupeWindow: 30 * time.Second,
		},
		Watch: WatchConfig{
			Timeout:      30 * time.Second,
			PollInterval: 2 * time.Second,
		},
	}
}

// DefaultPath returns ~/.csessync/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".csessync", "config.yaml"), nil
}

// Load reads configuration from path. A missing file yields the defaults (not
// an error); a file that exists but cannot be parsed is an error. Fields
// absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.JudgeBaseURL != "" {
		cfg.JudgeBaseURL = fc.JudgeBaseURL
	}
	if fc.APIBaseURL != "" {
		cfg.APIBaseURL = fc.APIBaseURL
	}
	if fc.AuthBaseURL != "" {
		cfg.AuthBaseURL = fc.AuthBaseURL
	}
	if fc.ProblemsRoot != "" {
		cfg.ProblemsRoot = fc.ProblemsRoot
	}
	if err := setDuration(&cfg.FetchTimeout, fc.FetchTimeout, "fetch_timeout"); err != nil {
		return nil, err
	}
	if fc.Publish.MaxAttempts > 0 {
		cfg.Publish.MaxAttempts = fc.Publish.MaxAttempts
	}
	if err := setDuration(&cfg.Publish.Backoff, fc.Publish.Backoff, "publish.backoff"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.Publish.DedupeWindow, fc.Publish.DedupeWindow, "publish.dedupe_window"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.Watch.Timeout, fc.Watch.Timeout, "watch.timeout"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.Watch.PollInterval, fc.Watch.PollInterval, "watch.poll_interval"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDuration parses a duration string from the file into dst, leaving dst
// untouched when the field is absent.
func setDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s duration %q: %w", field, value, err)
	}
	*dst = d
	return nil
}
