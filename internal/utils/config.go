package utils

import (
	"fmt"
	"time"

	"github.com/netsweep/netsweep/internal/constants"
	"github.com/netsweep/netsweep/pkg/file"
)

// Config represents the structure of the settings file. Every value can be
// overridden per run from the command line; the file carries the durable
// defaults.
type Config struct {
	SSH struct {
		ConnectTimeout time.Duration `yaml:"connect_timeout"`  // Timeout for establishing a device connection
		CommandTimeout time.Duration `yaml:"command_timeout"`  // Default timeout for one command execution
		MaxAttempts    int           `yaml:"max_attempts"`     // Total connect attempts per device
		RetryDelay     time.Duration `yaml:"retry_delay"`      // Base delay between connect attempts
		MaxRetryDelay  time.Duration `yaml:"max_retry_delay"`  // Cap on the backoff delay
		RetryOnError   bool          `yaml:"retry_on_error"`   // Retry connect failures that are neither auth nor timeout
		KnownHostsFile string        `yaml:"known_hosts_file"` // Verify host keys against this file when set
	} `yaml:"ssh"`

	Auth struct {
		Username     string `yaml:"username"`       // Default username for devices without one
		Password     string `yaml:"-"`              // Default password; never persisted
		Method       string `yaml:"method"`         // Default auth method: password, key or agent
		KeyFile      string `yaml:"key_file"`       // Default private key path for key auth
		EnableSecret string `yaml:"-"`              // Privileged mode secret; never persisted
		DeviceType   string `yaml:"device_type"`    // Default platform for devices without one
		SSHConfig    string `yaml:"ssh_config"`     // Per-host SSH config override file
		JumpHost     string `yaml:"jump_host"`      // Default jump host for all devices
	} `yaml:"auth"`

	Execution struct {
		Concurrency int `yaml:"concurrency"` // Maximum devices executing at once
		BatchSize   int `yaml:"batch_size"`  // Chunk size for batched mode; 0 disables chunking
	} `yaml:"execution"`

	Output struct {
		File          string `yaml:"file"`           // Report destination path
		Format        string `yaml:"format"`         // Report format: csv, json, yaml or html
		StatsFile     string `yaml:"stats_file"`     // When set, batch statistics are saved here as JSON
		TranscriptDir string `yaml:"transcript_dir"` // When set, per-device session transcripts are written here
	} `yaml:"output"`

	Logging struct {
		Level string `yaml:"level"` // Log level: debug, info, warn or error
	} `yaml:"logging"`
}

// DefaultConfig returns the configuration used when no settings file exists.
func DefaultConfig() *Config {
	var config Config
	config.SSH.ConnectTimeout = constants.DefaultConnectTimeout
	config.SSH.CommandTimeout = constants.DefaultCommandTimeout
	config.SSH.MaxAttempts = constants.DefaultMaxConnectAttempts
	config.SSH.RetryDelay = constants.DefaultRetryDelay
	config.SSH.MaxRetryDelay = constants.DefaultMaxRetryDelay
	config.Auth.Method = "password"
	config.Execution.Concurrency = constants.DefaultConcurrency
	config.Output.File = "output.csv"
	config.Output.Format = constants.DefaultOutputFormat
	config.Logging.Level = "info"
	return &config
}

// LoadConfig loads the YAML settings from the specified file, layered over
// the defaults. A missing file is not an error: the defaults are returned
// so first runs work without any setup.
func LoadConfig(filename string, fileClient file.Operations) (*Config, error) {
	config := DefaultConfig()

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to check settings file %s: %w", filename, err)
	}
	if !exists {
		return config, nil
	}

	if err := fileClient.ReadYamlFile(filename, config); err != nil {
		return nil, fmt.Errorf("failed to load settings file %s: %w", filename, err)
	}
	return config, nil
}

// SaveConfig persists the settings to the given path. Credentials are
// excluded by their yaml tags.
func SaveConfig(filename string, config *Config, fileClient file.Operations) error {
	if err := fileClient.WriteYamlFile(filename, config); err != nil {
		return fmt.Errorf("failed to save settings file %s: %w", filename, err)
	}
	return nil
}
