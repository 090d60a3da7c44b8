// Package backoff computes delays for retry loops.
package backoff

import "time"

// Policy describes an exponential retry schedule. Zero values fall back
// to a 100ms base and a 5s cap.
type Policy struct {
	Base time.Duration // delay before the first retry
	Cap  time.Duration // upper bound on any delay
}

// Delay returns the wait before retry number attempt. Attempt 1 waits
// Base, each further attempt doubles the previous delay up to Cap.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	limit := p.Cap
	if limit <= 0 {
		limit = 5 * time.Second
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

// Exponential returns the default policy's delay for attempt.
func Exponential(attempt int) time.Duration {
	return Policy{}.Delay(attempt)
}
