package health

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/agenthealth/observe"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Middleware instruments every check with tracing, metrics and logging.
	// Default: none
	Middleware *observe.Middleware

	// Component labels telemetry emitted for the registered checks.
	Component string
}

// NamedResult pairs a checker name with its result.
type NamedResult struct {
	Name   string
	Result Result
}

// Aggregator combines multiple health checkers into one verdict. Checks run
// sequentially in registration order on every call; nothing is cached.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string // Maintains registration order
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds a health checker. Registering an existing name replaces the
// checker and keeps its position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a health checker from the aggregator.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)

	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// CheckerNames returns the names of all registered checkers in order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// CheckOne runs a single named health check.
func (a *Aggregator) CheckOne(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	return a.runCheck(ctx, name, checker), nil
}

// CheckAll runs every registered check in registration order.
func (a *Aggregator) CheckAll(ctx context.Context) []NamedResult {
	a.mu.RLock()
	names := make([]string, len(a.order))
	copy(names, a.order)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	results := make([]NamedResult, len(names))
	for i, name := range names {
		results[i] = NamedResult{Name: name, Result: a.runCheck(ctx, name, checkers[i])}
	}
	return results
}

// Overall folds ordered results into one verdict: unhealthy with the reason
// of the first unhealthy result, otherwise healthy.
func Overall(results []NamedResult) Result {
	for _, nr := range results {
		if !nr.Result.IsHealthy() {
			return Unhealthy(nr.Result.Reason)
		}
	}
	return Healthy()
}

// Name returns the name of the aggregate checker.
func (a *Aggregator) Name() string {
	return "aggregate"
}

// Check evaluates every registered checker and returns the combined verdict.
// Per-checker outcomes are reported in Details.
func (a *Aggregator) Check(ctx context.Context) Result {
	start := time.Now()
	results := a.CheckAll(ctx)

	details := make(map[string]any, len(results))
	for _, nr := range results {
		details[nr.Name] = map[string]any{
			"status":   nr.Result.Status.String(),
			"reason":   nr.Result.Reason,
			"duration": nr.Result.Duration.String(),
		}
	}

	return Overall(results).WithDetails(details).WithDuration(time.Since(start))
}

func (a *Aggregator) runCheck(ctx context.Context, name string, checker Checker) Result {
	start := time.Now()

	var result Result
	eval := func(ctx context.Context, _ observe.CheckMeta) (bool, string) {
		result = checker.Check(ctx)
		return result.IsHealthy(), result.Reason
	}
	if a.config.Middleware != nil {
		eval = a.config.Middleware.Wrap(eval)
	}
	eval(ctx, observe.CheckMeta{Name: name, Component: a.config.Component})

	result.Duration = time.Since(start)
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}
	return result
}

var _ Checker = (*Aggregator)(nil)
