// Package health provides liveness and readiness probes for the agent host.
package health

import (
	"context"
	"sync"
	"time"
)

// ReadinessChecker reports whether a dependency can take work.
// agent.Service implements it for the configured backend.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = time.Second
)

// CheckResult contains the result of a single check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the probe response body.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker runs readiness checks against one named dependency and caches
// the result briefly so probes do not hammer the backend control plane.
type Checker struct {
	name     string
	dep      ReadinessChecker
	timeout  time.Duration
	cacheTTL time.Duration

	mu           sync.RWMutex
	lastCheck    time.Time
	cachedReady  *Response
	shuttingDown bool
}

// NewChecker creates a checker for dep, reported under name.
func NewChecker(name string, dep ReadinessChecker) *Checker {
	return &Checker{
		name:     name,
		dep:      dep,
		timeout:  defaultTimeout,
		cacheTTL: defaultCacheTTL,
	}
}

// Liveness reports the process is up. It never touches the backend.
func (c *Checker) Liveness(context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness reports whether the service should receive traffic.
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
	if c.cachedReady != nil && time.Since(c.lastCheck) < c.cacheTTL {
		cached := c.cachedReady
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	check := c.check(ctx)
	response := &Response{
		Status: check.Status,
		Checks: map[string]CheckResult{c.name: check},
	}

	c.mu.Lock()
	c.cachedReady = response
	c.lastCheck = time.Now()
	c.mu.Unlock()

	return response
}

func (c *Checker) check(ctx context.Context) CheckResult {
	if c.dep == nil {
		return CheckResult{Status: StatusUnhealthy, Message: c.name + " not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.dep.Ready(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// SetShuttingDown makes every later readiness probe fail so load balancers
// stop routing new requests here.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cachedReady = nil
}
