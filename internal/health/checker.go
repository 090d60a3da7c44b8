// Package health backs the liveness and readiness probe endpoints.
package health

import (
	"context"
	"sync"
	"time"
)

// ReadinessChecker reports whether a dependency can serve traffic.
// Implemented by the lifecycle scheduler.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status of a component or the service as a whole.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of probing a single dependency.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response aggregates per-dependency results.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether every check passed.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// Checker probes dependencies for the readiness endpoint. Results are
// cached briefly so probe storms do not hammer the dependencies.
type Checker struct {
	scheduler    ReadinessChecker
	probeTimeout time.Duration
	cacheTTL     time.Duration

	mu           sync.RWMutex
	cached       *Response
	cachedAt     time.Time
	shuttingDown bool
}

// NewChecker creates a checker over the given scheduler.
func NewChecker(scheduler ReadinessChecker) *Checker {
	return &Checker{
		scheduler:    scheduler,
		probeTimeout: 5 * time.Second,
		cacheTTL:     time.Second,
	}
}

// Liveness always reports healthy while the process can serve requests.
// A failed liveness probe restarts the container, so it must not
// depend on downstream components.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness probes the scheduler, caching the result for cacheTTL.
// During shutdown it reports unhealthy so load balancers stop routing
// new traffic here.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}
	if c.cached != nil && time.Since(c.cachedAt) < c.cacheTTL {
		cached := c.cached
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	result := c.probeScheduler(ctx)
	response := &Response{
		Status: result.Status,
		Checks: map[string]CheckResult{"scheduler": result},
	}

	c.mu.Lock()
	c.cached = response
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return response
}

func (c *Checker) probeScheduler(ctx context.Context) CheckResult {
	if c.scheduler == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "scheduler not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if err := c.scheduler.Ready(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown makes all further readiness checks fail. Called at
// the start of graceful shutdown, before the listener closes.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cached = nil
}
