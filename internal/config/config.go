// Package config handles configuration for the monitor,
// including defaults, JSON overlay, command-line flags, and the
// positional arguments of the command-line surface.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Config holds runtime settings for the s3mirror monitor.
//
// Fields:
//   - WatchRoot: local directory tree to monitor.
//   - Recursive: whether subdirectories are watched as well.
//   - KeyPrefix: prefix prepended to each remote key ("up/" style).
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
//   - S3RootUser / S3RootPassword: static credentials for an S3-compatible
//     backend (MinIO); leave empty to use the ambient AWS credential chain.
//   - DebounceInterval: quiet period per remote key before dispatch.
//   - Concurrency: upload worker pool size.
//   - MaxAttempts: total store submissions per task before giving up.
//   - RetryBaseDelay / RetryMaxDelay: exponential backoff parameters.
//   - JournalPath: sqlite file recording upload outcomes; empty disables it.
type Config struct {
	WatchRoot        string
	Recursive        bool
	KeyPrefix        string
	S3Bucket         string
	S3Region         string
	S3RootUser       string
	S3RootPassword   string
	S3BaseEndpoint   string
	DebounceInterval time.Duration
	Concurrency      int
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	JournalPath      string
}

// LoadDefaults populates Config with sensible development defaults.
func (c *Config) LoadDefaults() {
	c.Recursive = true
	c.S3Region = "us-east-1"
	c.DebounceInterval = 300 * time.Millisecond
	c.Concurrency = 4
	c.MaxAttempts = 5
	c.RetryBaseDelay = 500 * time.Millisecond
	c.RetryMaxDelay = 30 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, command-line flags, and finally the positional
// arguments <watch_path> <bucket> [key_prefix]. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	applyPositionals(cfg, os.Args[1:])
	return cfg
}

// Validate reports the first misconfiguration that would prevent the
// monitor from starting.
func (c *Config) Validate() error {
	if c.WatchRoot == "" {
		return errors.New("watch path is required")
	}
	if c.S3Bucket == "" {
		return errors.New("bucket name is required")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("max attempts must be positive")
	}
	if c.DebounceInterval <= 0 {
		return errors.New("debounce interval must be positive")
	}
	return nil
}

// NormalizedPrefix returns the key prefix with exactly one trailing slash,
// or an empty string when no prefix is configured.
func (c *Config) NormalizedPrefix() string {
	if c.KeyPrefix == "" {
		return ""
	}
	return strings.TrimRight(c.KeyPrefix, "/") + "/"
}
