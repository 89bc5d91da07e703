package config

import (
	"fmt"
	"net/url"

	"github.com/samber/lo"

	"github.com/Nash0810/weightsel/internal/backend"
)

// Config represents the dispatcher configuration
type Config struct {
	Port           int             `yaml:"port"`            // Listen port
	Backends       []BackendConfig `yaml:"backends"`        // Backend URLs with weights
	Strategy       string          `yaml:"strategy"`        // Selection algorithm: round-robin, random
	Layout         string          `yaml:"layout"`          // Projection layout: contiguous, smooth
	RequestTimeout int             `yaml:"request_timeout"` // Per request timeout in seconds
	Retry          RetryConfig     `yaml:"retry"`           // Retry configuration
	RateLimit      RateLimitConfig `yaml:"rate_limit"`      // Inbound rate limiting
	Logging        LoggingConfig   `yaml:"logging"`         // Log output
}

// BackendConfig represents a single backend configuration
type BackendConfig struct {
	URL    string `yaml:"url"`              // Backend URL
	Weight *int   `yaml:"weight,omitempty"` // Optional weight, 1 when omitted, 0 excludes the backend
}

// RetryConfig defines retry parameters for transport failures
type RetryConfig struct {
	Enabled       bool `yaml:"enabled"`        // Enable retries
	MaxAttempts   int  `yaml:"max_attempts"`   // Total attempts including the first
	BudgetPercent int  `yaml:"budget_percent"` // Share of traffic that may be retries
}

// RateLimitConfig defines the inbound token bucket
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`             // Enable rate limiting
	RequestsPerSecond float64 `yaml:"requests_per_second"` // Sustained rate
	Burst             int     `yaml:"burst"`               // Bucket size
}

// LoggingConfig defines log level and optional rotated file output
type LoggingConfig struct {
	Level      string `yaml:"level"`        // debug, info, warn, error
	File       string `yaml:"file"`         // Empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotate after this size
	MaxBackups int    `yaml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `yaml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `yaml:"compress"`     // Gzip rotated files
}

// ParsedBackend represents a backend with parsed URL
type ParsedBackend struct {
	URL    *url.URL
	Weight int
}

// Backend converts the parsed backend into a selectable backend
func (pb *ParsedBackend) Backend() backend.Backend {
	return backend.NewBackend(pb.URL.String(), pb.Weight)
}

// ParseBackends converts BackendConfig to ParsedBackend.
// Backends configured with weight 0 are excluded and returned separately
// so the caller can report them; negative weights are kept and rejected
// when the selector is built.
func (c *Config) ParseBackends() ([]*ParsedBackend, []string, error) {
	var backends []*ParsedBackend
	for _, bc := range c.Backends {
		u, err := url.Parse(bc.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid backend url %q: %w", bc.URL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, nil, fmt.Errorf("invalid backend url %q: scheme and host required", bc.URL)
		}

		weight := 1 // Default weight
		if bc.Weight != nil {
			weight = *bc.Weight
		}

		backends = append(backends, &ParsedBackend{
			URL:    u,
			Weight: weight,
		})
	}

	kept, dropped := lo.FilterReject(backends, func(pb *ParsedBackend, _ int) bool {
		return pb.Weight != 0
	})
	excluded := lo.Map(dropped, func(pb *ParsedBackend, _ int) string {
		return pb.URL.String()
	})

	return kept, excluded, nil
}

// SelectorBackends returns the selectable backends in configured order
func SelectorBackends(parsed []*ParsedBackend) []backend.Backend {
	return lo.Map(parsed, func(pb *ParsedBackend, _ int) backend.Backend {
		return pb.Backend()
	})
}
