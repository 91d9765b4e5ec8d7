package observe

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*metricsImpl, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		return 0
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordCheck(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := CheckMeta{Name: "docker"}

	m.RecordCheck(ctx, meta, time.Millisecond, true)
	m.RecordCheck(ctx, meta, time.Millisecond, false)
	m.RecordCheck(ctx, meta, time.Millisecond, false)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "health.check.total"); got != 3 {
		t.Errorf("health.check.total = %d, want 3", got)
	}
	if got := sumValue(t, rm, "health.check.unhealthy"); got != 2 {
		t.Errorf("health.check.unhealthy = %d, want 2", got)
	}

	hist := findMetric(rm, "health.check.duration_ms")
	if hist == nil {
		t.Fatal("health.check.duration_ms not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	if h.DataPoints[0].Count != 3 {
		t.Errorf("histogram count = %d, want 3", h.DataPoints[0].Count)
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordCheck(context.Background(), CheckMeta{Name: "coordination"}, 0, true)
		}()
	}
	wg.Wait()

	if got := sumValue(t, collect(t, reader), "health.check.total"); got != n {
		t.Errorf("health.check.total = %d, want %d", got, n)
	}
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
