// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the batch API service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              Env("PORT", "8080"),
		MetricsPort:       Env("METRICS_PORT", "9090"),
		APIKey:            SecretFile(Env("API_KEY_FILE", "")),
		ShutdownDrainWait: DurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
	}
}
