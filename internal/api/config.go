package api

import (
	"time"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// Config holds server configuration.
type Config struct {
	Port            int
	Version         string
	Auth            AuthConfig
	RateLimit       RateLimiterConfig // zero RequestsPerMinute disables limiting
	AllowedOrigins  []string          // CORS and websocket origins; empty allows all
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
}

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxBodyBytes    = 1 << 20
)

func (c Config) withDefaults() Config {
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.BurstSize == 0 {
		c.RateLimit.BurstSize = 10
	}
	return c
}

// Validate checks the configuration before the server starts.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.NewValidation("port", "port must be between 0 and 65535")
	}
	if err := ValidateAuthConfig(c.Auth); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.BurstSize < 0 {
		return errors.NewValidation("rate_limit", "rate limit must not be negative")
	}
	return nil
}
