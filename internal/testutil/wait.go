// Package testutil provides polling helpers for asynchronous tests.
package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultInterval = 100 * time.Millisecond
)

type waitConfig struct {
	timeout  time.Duration
	interval time.Duration
}

// WaitOption adjusts polling behavior.
type WaitOption func(*waitConfig)

// WithTimeout sets the maximum wait time (default: 30s).
func WithTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.timeout = d }
}

// WithInterval sets the polling interval (default: 100ms).
func WithInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.interval = d }
}

// WaitFor polls condition until it returns true or the timeout elapses.
// The condition is checked once more when the deadline fires, so slow
// conditions that become true right at the end still pass.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()

	cfg := waitConfig{timeout: defaultTimeout, interval: defaultInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	if condition() {
		return true
	}

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(cfg.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			if condition() {
				return true
			}
		case <-deadline.C:
			return condition()
		}
	}
}

// WaitForCount polls until counter reaches at least target.
func WaitForCount(tb testing.TB, counter *atomic.Int64, target int64, opts ...WaitOption) bool {
	tb.Helper()
	return WaitFor(tb, func() bool { return counter.Load() >= target }, opts...)
}

// MustWaitFor is WaitFor but fails the test on timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}
