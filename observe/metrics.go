package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records check evaluation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCheck records one evaluation of a check and its verdict.
	RecordCheck(ctx context.Context, meta CheckMeta, duration time.Duration, healthy bool)
}

type metricsImpl struct {
	totalCount     metric.Int64Counter
	unhealthyCount metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// NewMetrics creates the check instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"health.check.total",
		metric.WithDescription("Total number of health check evaluations"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	unhealthyCount, err := meter.Int64Counter(
		"health.check.unhealthy",
		metric.WithDescription("Number of evaluations that reported unhealthy"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"health.check.duration_ms",
		metric.WithDescription("Health check evaluation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:     totalCount,
		unhealthyCount: unhealthyCount,
		durationHist:   durationHist,
	}, nil
}

func (m *metricsImpl) RecordCheck(ctx context.Context, meta CheckMeta, duration time.Duration, healthy bool) {
	attrs := []attribute.KeyValue{
		attribute.String("check.name", meta.Name),
	}
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("check.component", meta.Component))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if !healthy {
		m.unhealthyCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type noopMetrics struct{}

func (noopMetrics) RecordCheck(ctx context.Context, meta CheckMeta, duration time.Duration, healthy bool) {
}
