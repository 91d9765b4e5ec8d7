package health

import (
	"context"
	"time"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusUnhealthy indicates the component should be taken out of service.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the verdict of a single evaluation. It is built fresh for every
// call and never cached.
type Result struct {
	// Status is the health status.
	Status Status

	// Reason explains why the component is unhealthy. Empty when healthy.
	Reason string

	// Details contains arbitrary metadata about the check.
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check was performed.
	Timestamp time.Time

	// Error is set when the checker itself has failed.
	Error error
}

// Healthy creates a healthy result.
func Healthy() Result {
	return Result{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result with the given reason.
func Unhealthy(reason string) Result {
	return Result{
		Status:    StatusUnhealthy,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsHealthy reports whether the result is healthy.
func (r Result) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration sets the duration on a result.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// WithError attaches the error that caused the result.
func (r Result) WithError(err error) Result {
	r.Error = err
	return r
}

// Checker is the interface for health checks.
//
// Contract:
// - Concurrency: Check must be safe for concurrent use by multiple probes.
// - Blocking: Check must not wait on network or disk I/O.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check evaluates the component now and returns the verdict.
	Check(ctx context.Context) Result
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

// Service is implemented by checkers that run background work.
//
// Contract:
// - Start may fail and the error must reach the caller.
// - Stop is best-effort, must not fail and may be called more than once.
type Service interface {
	Start(ctx context.Context) error
	Stop()
}
