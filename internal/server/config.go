// Manages server configuration stored in config.yml.

package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config stores all server-wide configuration.
// Loaded from config.yml in the data directory, created with defaults if
// missing. CLI flags override individual fields after loading.
type Config struct {
	// Addr is the address the HTTP listener binds to.
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// DefaultLoanDays is the loan period used when a borrow request does not
	// specify one.
	DefaultLoanDays int `yaml:"default_loan_days"`

	// RateLimitPerMin caps API requests per minute across all clients.
	// 0 disables limiting.
	RateLimitPerMin int `yaml:"rate_limit_per_min"`

	// WatchFiles reloads the collections when the data files are modified by
	// another program.
	WatchFiles bool `yaml:"watch_files"`
}

// DefaultConfig returns the configuration used on first run.
func DefaultConfig() Config {
	return Config{
		Addr:            "localhost:8080",
		LogLevel:        "info",
		DefaultLoanDays: 14,
		RateLimitPerMin: 600,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	if c.DefaultLoanDays <= 0 {
		return errors.New("default_loan_days must be positive")
	}
	if c.RateLimitPerMin < 0 {
		return errors.New("rate_limit_per_min must be non-negative")
	}
	return nil
}

// LoadConfig loads configuration from dataDir/config.yml.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, "config.yml")
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yml: %w", err)
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config.yml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config.yml: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to dataDir/config.yml.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "config.yml"), data, 0o644); err != nil { //nolint:gosec // G306: config holds no secrets
		return fmt.Errorf("failed to write config.yml: %w", err)
	}
	return nil
}
