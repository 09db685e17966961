package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/s3mirror/internal/flagx"
	"github.com/dmitrijs2005/s3mirror/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "300ms" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	WatchRoot        string         `json:"watch_root"`
	Recursive        *bool          `json:"recursive"`
	KeyPrefix        string         `json:"key_prefix"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	DebounceInterval timex.Duration `json:"debounce_interval"`
	Concurrency      int            `json:"concurrency"`
	MaxAttempts      int            `json:"max_attempts"`
	RetryBaseDelay   timex.Duration `json:"retry_base_delay"`
	RetryMaxDelay    timex.Duration `json:"retry_max_delay"`
	JournalPath      string         `json:"journal_path"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; if neither
// is set, no JSON file is loaded. Zero-valued JSON fields leave the
// corresponding Config defaults untouched, so a partial file only overrides
// what it names. If the file cannot be read or contains invalid JSON, the
// function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.WatchRoot != "" {
		config.WatchRoot = c.WatchRoot
	}
	if c.Recursive != nil {
		config.Recursive = *c.Recursive
	}
	if c.KeyPrefix != "" {
		config.KeyPrefix = c.KeyPrefix
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.DebounceInterval.Duration != 0 {
		config.DebounceInterval = c.DebounceInterval.Duration
	}
	if c.Concurrency != 0 {
		config.Concurrency = c.Concurrency
	}
	if c.MaxAttempts != 0 {
		config.MaxAttempts = c.MaxAttempts
	}
	if c.RetryBaseDelay.Duration != 0 {
		config.RetryBaseDelay = c.RetryBaseDelay.Duration
	}
	if c.RetryMaxDelay.Duration != 0 {
		config.RetryMaxDelay = c.RetryMaxDelay.Duration
	}
	if c.JournalPath != "" {
		config.JournalPath = c.JournalPath
	}
}
