package observe

import (
	"context"
	"time"
)

// CheckFunc evaluates a check and reports its verdict.
type CheckFunc func(ctx context.Context, meta CheckMeta) (healthy bool, reason string)

// Middleware wraps check evaluation with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CheckFunc.
//   - Context: propagates context through tracing spans.
//   - The verdict of the wrapped function is returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components fall back to no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a CheckFunc with tracing, metrics, and logging.
// Healthy evaluations log at debug since probes run them constantly.
func (m *Middleware) Wrap(fn CheckFunc) CheckFunc {
	return func(ctx context.Context, meta CheckMeta) (bool, string) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		healthy, reason := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, healthy, reason)
		m.metrics.RecordCheck(ctx, meta, duration, healthy)

		fields := []Field{
			F("check", meta.Name),
			F("duration_ms", float64(duration.Microseconds())/1000),
		}
		if healthy {
			m.logger.Debug(ctx, "health check passed", fields...)
		} else {
			fields = append(fields, F("reason", reason))
			m.logger.Warn(ctx, "health check failed", fields...)
		}

		return healthy, reason
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
