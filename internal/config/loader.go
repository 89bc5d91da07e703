package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads YAML file and parses it into Config struct
func LoadConfig(filepath string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config and applies defaults
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set defaults
	if config.Port == 0 {
		config.Port = 8080
	}
	if len(config.Backends) == 0 {
		return nil, fmt.Errorf("no backends configured")
	}
	if config.Strategy == "" {
		config.Strategy = "round-robin"
	}
	if config.Layout == "" {
		config.Layout = "contiguous"
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}

	// Retry defaults
	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = 3
	}
	if config.Retry.BudgetPercent == 0 {
		config.Retry.BudgetPercent = 20
	}

	// Rate limit defaults
	if config.RateLimit.Enabled && config.RateLimit.Burst == 0 {
		config.RateLimit.Burst = int(config.RateLimit.RequestsPerSecond)
		if config.RateLimit.Burst < 1 {
			config.RateLimit.Burst = 1
		}
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.File != "" {
		if config.Logging.MaxSizeMB == 0 {
			config.Logging.MaxSizeMB = 10
		}
		if config.Logging.MaxBackups == 0 {
			config.Logging.MaxBackups = 5
		}
		if config.Logging.MaxAgeDays == 0 {
			config.Logging.MaxAgeDays = 14
		}
	}

	return &config, nil
}
