package promrates

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/agenthealth/health"
	"github.com/jonwraymond/agenthealth/observe"
)

// Default queries over the counters published by meter.SupervisorMetrics.
const (
	DefaultTimeoutsQuery   = `sum(rate(supervisor_docker_timeouts_total[5m]))`
	DefaultExceptionsQuery = `sum(rate(supervisor_container_exceptions_total[5m]))`
	DefaultRunsQuery       = `sum(rate(supervisor_runs_total[5m]))`
)

// Config configures a Sampler.
type Config struct {
	// URL is the Prometheus server address. Required.
	URL string

	// Refresh is the background sampling period. Default: 15 seconds
	Refresh time.Duration

	// Timeout bounds one refresh. Default: 5 seconds
	Timeout time.Duration

	TimeoutsQuery   string
	ExceptionsQuery string
	RunsQuery       string

	// Logger receives refresh failures and query warnings. Default: no-op
	Logger observe.Logger
}

// Rate is a pre-sampled five-minute rate.
type Rate float64

// FiveMinuteRate returns the sampled rate.
func (r Rate) FiveMinuteRate() float64 { return float64(r) }

type snapshot struct {
	timeouts   float64
	exceptions float64
	runs       float64
	at         time.Time
}

// Sampler caches rates queried from Prometheus. It implements
// health.FailureRates and health.Service.
type Sampler struct {
	api    v1.API
	config Config
	group  singleflight.Group

	mu   sync.RWMutex
	last snapshot

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sampler talking to the Prometheus server at config.URL.
func New(config Config) (*Sampler, error) {
	if config.URL == "" {
		return nil, ErrNoURL
	}
	client, err := api.NewClient(api.Config{Address: config.URL})
	if err != nil {
		return nil, fmt.Errorf("promrates: create client: %w", err)
	}
	return NewWithAPI(v1.NewAPI(client), config), nil
}

// NewWithAPI creates a Sampler on an existing Prometheus API client.
func NewWithAPI(promAPI v1.API, config Config) *Sampler {
	if config.Refresh <= 0 {
		config.Refresh = 15 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.TimeoutsQuery == "" {
		config.TimeoutsQuery = DefaultTimeoutsQuery
	}
	if config.ExceptionsQuery == "" {
		config.ExceptionsQuery = DefaultExceptionsQuery
	}
	if config.RunsQuery == "" {
		config.RunsQuery = DefaultRunsQuery
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Sampler{api: promAPI, config: config}
}

// Config returns the effective configuration.
func (s *Sampler) Config() Config {
	return s.config
}

// Refresh queries all three rates and replaces the cached values. Concurrent
// callers share one round of queries. On error the cache is left untouched.
func (s *Sampler) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Sampler) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	now := time.Now()
	var next snapshot
	var errs []error
	for _, q := range []struct {
		query string
		dst   *float64
	}{
		{s.config.TimeoutsQuery, &next.timeouts},
		{s.config.ExceptionsQuery, &next.exceptions},
		{s.config.RunsQuery, &next.runs},
	} {
		v, err := s.query(ctx, q.query, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*q.dst = v
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	next.at = now
	s.mu.Lock()
	s.last = next
	s.mu.Unlock()
	return nil
}

// query runs an instant query and sums the returned samples. An empty
// vector means no events and reads as zero. NaN and infinite samples are
// skipped.
func (s *Sampler) query(ctx context.Context, query string, ts time.Time) (float64, error) {
	result, warnings, err := s.api.Query(ctx, query, ts)
	if err != nil {
		return 0, fmt.Errorf("promrates: query %q: %w", query, err)
	}
	if len(warnings) > 0 {
		s.config.Logger.Warn(ctx, "prometheus query warnings",
			observe.F("query", query),
			observe.F("warnings", []string(warnings)),
		)
	}

	switch v := result.(type) {
	case model.Vector:
		var sum float64
		for _, sample := range v {
			sum += finite(float64(sample.Value))
		}
		return sum, nil
	case *model.Scalar:
		return finite(float64(v.Value)), nil
	default:
		return 0, fmt.Errorf("%w: %q returned %s", ErrUnexpectedResult, query, result.Type())
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Start refreshes once and then every Refresh period until Stop is called or
// ctx is done. A failing first refresh is logged, not returned; rates read as
// zero until a refresh succeeds.
func (s *Sampler) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.refreshAndLog(ctx)
	go s.run(ctx, s.done)
	return nil
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAndLog(ctx)
		}
	}
}

func (s *Sampler) refreshAndLog(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.config.Logger.Warn(ctx, "prometheus refresh failed, keeping previous rates",
			observe.F("error", err),
			observe.F("last_refresh", s.LastRefresh()),
		)
	}
}

// Stop cancels background sampling and waits for an in-flight refresh.
func (s *Sampler) Stop() {
	s.lifeMu.Lock()
	cancel, done := s.cancel, s.done
	s.lifeMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LastRefresh returns when the cached rates were last replaced, or the zero
// time if no refresh has succeeded.
func (s *Sampler) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last.at
}

// TimeoutRates returns the cached docker timeout rate.
func (s *Sampler) TimeoutRates() health.Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Rate(s.last.timeouts)
}

// ExceptionRates returns the cached container exception rate.
func (s *Sampler) ExceptionRates() health.Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Rate(s.last.exceptions)
}

// RunRates returns the cached supervisor run rate.
func (s *Sampler) RunRates() health.Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Rate(s.last.runs)
}

var (
	_ health.FailureRates = (*Sampler)(nil)
	_ health.Service      = (*Sampler)(nil)
)
