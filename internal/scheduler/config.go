package scheduler

import (
	"time"

	"fakebatch/internal/config"
)

// Config holds timing configuration for the lifecycle driver.
type Config struct {
	TickInterval time.Duration // how often the driver advances jobs (default: 250ms)
	AssignDelay  time.Duration // dwell time in ASSIGNED before RUNNING (default: 500ms)
	TaskRunTime  time.Duration // simulated run time of every task (default: 2s)
}

// LoadConfigFromEnv loads scheduler configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TickInterval: config.DurationEnv("SCHEDULER_TICK_INTERVAL", 250*time.Millisecond),
		AssignDelay:  config.DurationEnv("SCHEDULER_ASSIGN_DELAY", 500*time.Millisecond),
		TaskRunTime:  config.DurationEnv("SCHEDULER_TASK_RUN_TIME", 2*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 250 * time.Millisecond
	}
	if c.AssignDelay < 0 {
		c.AssignDelay = 500 * time.Millisecond
	}
	if c.TaskRunTime <= 0 {
		c.TaskRunTime = 2 * time.Second
	}
	return c
}
