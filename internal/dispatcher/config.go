package dispatcher

import (
	"time"

	"fakebatch/internal/config"
)

// Delivery tuning that rarely needs changing.
const (
	defaultMaxRetries       = 3
	defaultInitialBackoff   = 100 * time.Millisecond
	defaultMaxBackoff       = 5 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultMaxRequeues      = 10
)

// MemoryConfig sizes the in-memory dispatcher.
type MemoryConfig struct {
	BufferSize  int           // pending events buffer (default: 10000)
	Workers     int           // concurrent delivery goroutines (default: 10)
	HTTPTimeout time.Duration // per-request timeout (default: 10s)
}

// LoadConfigFromEnv reads dispatcher settings from the environment.
func LoadConfigFromEnv() MemoryConfig {
	return MemoryConfig{
		BufferSize:  config.IntEnv("DISPATCHER_BUFFER_SIZE", 10000),
		Workers:     config.IntEnv("DISPATCHER_WORKERS", 10),
		HTTPTimeout: config.DurationEnv("DISPATCHER_HTTP_TIMEOUT", 10*time.Second),
	}.withDefaults()
}

func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}
