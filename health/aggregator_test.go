package health

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/agenthealth/observe"
	"github.com/jonwraymond/agenthealth/watch"
)

func static(name string, result Result) *CheckerFunc {
	return NewCheckerFunc(name, func(ctx context.Context) Result { return result })
}

func TestAggregator_RegisterKeepsOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register("b", static("b", Healthy()))
	agg.Register("a", static("a", Healthy()))
	agg.Register("c", static("c", Healthy()))
	agg.Register("a", static("a", Unhealthy("replaced")))

	want := []string{"b", "a", "c"}
	if got := agg.CheckerNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("CheckerNames() = %v, want %v", got, want)
	}

	result, err := agg.CheckOne(context.Background(), "a")
	if err != nil {
		t.Fatalf("CheckOne() error = %v", err)
	}
	if result.Reason != "replaced" {
		t.Errorf("Reason = %q, want replaced", result.Reason)
	}
}

func TestAggregator_Unregister(t *testing.T) {
	agg := NewAggregator()
	agg.Register("a", static("a", Healthy()))
	agg.Register("b", static("b", Healthy()))
	agg.Unregister("a")
	agg.Unregister("missing")

	if got := agg.CheckerNames(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("CheckerNames() = %v, want [b]", got)
	}
}

func TestAggregator_CheckOneNotFound(t *testing.T) {
	agg := NewAggregator()
	if _, err := agg.CheckOne(context.Background(), "nope"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("error = %v, want %v", err, ErrCheckerNotFound)
	}
}

func TestAggregator_Check(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []*CheckerFunc
		wantHealth bool
		wantReason string
	}{
		{
			name:       "no checkers",
			wantHealth: true,
		},
		{
			name:       "all healthy",
			checkers:   []*CheckerFunc{static("a", Healthy()), static("b", Healthy())},
			wantHealth: true,
		},
		{
			name:       "second unhealthy",
			checkers:   []*CheckerFunc{static("a", Healthy()), static("b", Unhealthy("X"))},
			wantReason: "X",
		},
		{
			name:       "first unhealthy wins",
			checkers:   []*CheckerFunc{static("a", Unhealthy("first")), static("b", Unhealthy("second"))},
			wantReason: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			for _, c := range tt.checkers {
				agg.Register(c.Name(), c)
			}

			result := agg.Check(context.Background())
			if result.IsHealthy() != tt.wantHealth {
				t.Fatalf("IsHealthy() = %v, want %v", result.IsHealthy(), tt.wantHealth)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
			if len(result.Details) != len(tt.checkers) {
				t.Errorf("Details has %d entries, want %d", len(result.Details), len(tt.checkers))
			}
		})
	}
}

func TestAggregator_EvaluatesEveryCheckerEveryCall(t *testing.T) {
	var calls atomic.Int64
	counting := NewCheckerFunc("count", func(ctx context.Context) Result {
		calls.Add(1)
		return Healthy()
	})

	agg := NewAggregator()
	agg.Register("bad", static("bad", Unhealthy("down")))
	agg.Register("count", counting)

	for i := 0; i < 3; i++ {
		agg.Check(context.Background())
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("checker evaluated %d times, want 3", got)
	}
}

func TestAggregator_CheckAllOrderAndTiming(t *testing.T) {
	agg := NewAggregator()
	agg.Register("z", static("z", Healthy()))
	agg.Register("y", NewCheckerFunc("y", func(ctx context.Context) Result { return Result{Status: StatusUnhealthy, Reason: "r"} }))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 || results[0].Name != "z" || results[1].Name != "y" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[1].Result.Timestamp.IsZero() {
		t.Error("Timestamp should be filled in")
	}
}

func TestAggregator_RealCheckers(t *testing.T) {
	rates := &fakeRates{}
	rateChecker := newTestRateChecker(t, rates)
	conn, feed := startConnectivity(t)

	agg := NewAggregator()
	agg.Register(rateChecker.Name(), rateChecker)
	agg.Register(conn.Name(), conn)

	if got := agg.Check(context.Background()); got.Reason != ReasonUnknown {
		t.Fatalf("Reason = %q, want UNKNOWN", got.Reason)
	}

	publish(t, feed, watch.EventInitialized)
	waitReason(t, conn, "")
	if got := agg.Check(context.Background()); !got.IsHealthy() {
		t.Fatalf("expected healthy, got %q", got.Reason)
	}

	rates.set(badRate, 0, runRate)
	if got := agg.Check(context.Background()); got.Reason != ReasonTimeouts {
		t.Errorf("Reason = %q, want %q", got.Reason, ReasonTimeouts)
	}
}

func TestAggregator_Middleware(t *testing.T) {
	var out syncBuffer
	mw := observe.NewMiddleware(nil, nil, observe.NewLoggerWithWriter("warn", &out))

	agg := NewAggregator(AggregatorConfig{Middleware: mw, Component: "agent"})
	agg.Register("coordination", static("coordination", Unhealthy(ReasonConnectionLost)))

	result := agg.Check(context.Background())
	if result.Reason != ReasonConnectionLost {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonConnectionLost)
	}
	if out.String() == "" {
		t.Error("middleware did not log the failed check")
	}
}
