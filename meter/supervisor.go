package meter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/jonwraymond/agenthealth/health"
)

// SupervisorMetrics tracks the supervisor events the docker health checker
// compares. It implements health.FailureRates.
type SupervisorMetrics struct {
	timeouts   *Meter
	exceptions *Meter
	runs       *Meter

	timeoutCount   metric.Int64Counter
	exceptionCount metric.Int64Counter
	runCount       metric.Int64Counter
	registration   metric.Registration
}

// NewSupervisorMetrics creates the meters and their OpenTelemetry
// instruments. A nil meter disables export.
func NewSupervisorMetrics(m metric.Meter) (*SupervisorMetrics, error) {
	return newSupervisorMetrics(m, time.Now)
}

func newSupervisorMetrics(m metric.Meter, now func() time.Time) (*SupervisorMetrics, error) {
	if m == nil {
		m = noop.NewMeterProvider().Meter("agenthealth/meter")
	}

	s := &SupervisorMetrics{
		timeouts:   newMeter(now),
		exceptions: newMeter(now),
		runs:       newMeter(now),
	}

	var err error
	if s.timeoutCount, err = m.Int64Counter(
		"supervisor.docker_timeouts",
		metric.WithDescription("Docker operations that timed out"),
		metric.WithUnit("{timeout}"),
	); err != nil {
		return nil, err
	}
	if s.exceptionCount, err = m.Int64Counter(
		"supervisor.container_exceptions",
		metric.WithDescription("Container runs that threw an exception"),
		metric.WithUnit("{exception}"),
	); err != nil {
		return nil, err
	}
	if s.runCount, err = m.Int64Counter(
		"supervisor.runs",
		metric.WithDescription("Supervisor runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}

	timeoutRate, err := m.Float64ObservableGauge(
		"supervisor.docker_timeouts.rate_5m",
		metric.WithDescription("Five-minute moving average of docker timeouts"),
		metric.WithUnit("{timeout}/s"),
	)
	if err != nil {
		return nil, err
	}
	exceptionRate, err := m.Float64ObservableGauge(
		"supervisor.container_exceptions.rate_5m",
		metric.WithDescription("Five-minute moving average of container exceptions"),
		metric.WithUnit("{exception}/s"),
	)
	if err != nil {
		return nil, err
	}
	runRate, err := m.Float64ObservableGauge(
		"supervisor.runs.rate_5m",
		metric.WithDescription("Five-minute moving average of supervisor runs"),
		metric.WithUnit("{run}/s"),
	)
	if err != nil {
		return nil, err
	}

	s.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(timeoutRate, s.timeouts.FiveMinuteRate())
		o.ObserveFloat64(exceptionRate, s.exceptions.FiveMinuteRate())
		o.ObserveFloat64(runRate, s.runs.FiveMinuteRate())
		return nil
	}, timeoutRate, exceptionRate, runRate)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Event kinds accepted by Record.
const (
	KindDockerTimeout      = "docker_timeout"
	KindContainerException = "container_exception"
	KindRun                = "run"
)

// Record errors.
var (
	ErrUnknownKind  = errors.New("meter: unknown event kind")
	ErrInvalidCount = errors.New("meter: event count must be positive")
)

// Record marks n events of the given kind. n must be at least one.
func (s *SupervisorMetrics) Record(ctx context.Context, kind string, n int64) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	switch kind {
	case KindDockerTimeout:
		s.timeouts.Mark(n)
		s.timeoutCount.Add(ctx, n)
	case KindContainerException:
		s.exceptions.Mark(n)
		s.exceptionCount.Add(ctx, n)
	case KindRun:
		s.runs.Mark(n)
		s.runCount.Add(ctx, n)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return nil
}

// DockerTimeout records a docker operation that timed out.
func (s *SupervisorMetrics) DockerTimeout(ctx context.Context) {
	_ = s.Record(ctx, KindDockerTimeout, 1)
}

// ContainerException records a container run that threw an exception.
func (s *SupervisorMetrics) ContainerException(ctx context.Context) {
	_ = s.Record(ctx, KindContainerException, 1)
}

// SupervisorRun records one supervisor run.
func (s *SupervisorMetrics) SupervisorRun(ctx context.Context) {
	_ = s.Record(ctx, KindRun, 1)
}

// TimeoutRates returns the docker timeout rates.
func (s *SupervisorMetrics) TimeoutRates() health.Rate { return s.timeouts.Rates() }

// ExceptionRates returns the container exception rates.
func (s *SupervisorMetrics) ExceptionRates() health.Rate { return s.exceptions.Rates() }

// RunRates returns the supervisor run rates.
func (s *SupervisorMetrics) RunRates() health.Rate { return s.runs.Rates() }

// Close unregisters the rate gauges.
func (s *SupervisorMetrics) Close() error {
	if s.registration == nil {
		return nil
	}
	err := s.registration.Unregister()
	s.registration = nil
	if err != nil {
		return fmt.Errorf("meter: unregister rate gauges: %w", err)
	}
	return nil
}

var _ health.FailureRates = (*SupervisorMetrics)(nil)
