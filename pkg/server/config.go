package server

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
)

// Config holds server configuration
type Config struct {
	// Address is the listen address, e.g. ":9464" or "127.0.0.1:9464".
	Address string

	// Rate limiting configuration
	RateLimit      rate.Limit // requests per second
	RateLimitBurst int        // burst size

	// Timeouts
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// NewConfig returns a Config for address with default limits.
func NewConfig(address string) *Config {
	return &Config{
		Address:           address,
		RateLimit:         20,
		RateLimitBurst:    40,
		ReadHeaderTimeout: defaults.ServerReadHeaderTimeout,
		WriteTimeout:      defaults.ServerWriteTimeout,
		IdleTimeout:       defaults.ServerIdleTimeout,
		ShutdownTimeout:   defaults.ShutdownTimeout,
	}
}
