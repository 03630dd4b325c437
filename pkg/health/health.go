package health

import (
	"context"
	"fmt"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeExec CheckType = "exec"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Config controls how checks are repeated
type Config struct {
	// Interval is the time between health checks
	Interval time.Duration

	// Timeout is the maximum time to wait for a single check
	Timeout time.Duration

	// Retries is the number of consecutive failures before marking as unhealthy
	Retries int

	// StartPeriod is the grace period before failures count. Cluster nodes
	// need a while to boot the OS inside the container.
	StartPeriod time.Duration
}

// DefaultConfig returns the settings used while waiting for a cluster
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     3,
		StartPeriod: 30 * time.Second,
	}
}

// Status tracks the health of one checked target over time
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result
	Healthy              bool
	StartedAt            time.Time
}

// NewStatus creates a new Status that is healthy until checks fail
func NewStatus() *Status {
	return &Status{
		Healthy:   true,
		StartedAt: time.Now(),
	}
}

// Update updates the status based on a new health check result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}
	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// InStartPeriod returns true if we're still in the startup grace period
func (s *Status) InStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < config.StartPeriod
}

// WaitHealthy runs the checker every Interval until it succeeds. It gives
// up when ctx is done, or once Retries checks failed in a row after the
// start period. A zero Retries waits for ctx only.
func WaitHealthy(ctx context.Context, c Checker, config Config) error {
	status := NewStatus()
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for {
		checkCtx := ctx
		cancel := func() {}
		if config.Timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		}
		result := c.Check(checkCtx)
		cancel()
		if result.Healthy {
			return nil
		}
		if !status.InStartPeriod(config) && config.Retries > 0 {
			status.Update(result, config)
			if !status.Healthy {
				return fmt.Errorf("%s check failed %d times: %s", c.Type(), status.ConsecutiveFailures, result.Message)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s check did not succeed: %s: %w", c.Type(), result.Message, ctx.Err())
		case <-ticker.C:
		}
	}
}

func newResult(start time.Time, healthy bool, format string, args ...any) Result {
	return Result{
		Healthy:   healthy,
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
