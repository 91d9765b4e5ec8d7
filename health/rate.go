package health

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/agenthealth/observe"
)

// Default watermarks for RateChecker.
const (
	DefaultLowWatermark  = 0.4
	DefaultHighWatermark = 0.8
)

// Ratios whose denominator rate is below this are treated as zero.
const minDenominatorRate = 0.1

// Reasons reported by RateChecker.
const (
	ReasonTimeouts   = "docker timeouts are too high for too long"
	ReasonExceptions = "supervisor run exception frequency is too high"
)

// Rate is a rolling event rate.
type Rate interface {
	// FiveMinuteRate returns the five-minute windowed rate. Never negative.
	FiveMinuteRate() float64
}

// FailureRates supplies the rates a RateChecker divides.
type FailureRates interface {
	// TimeoutRates is the rate of operation timeouts.
	TimeoutRates() Rate
	// ExceptionRates is the rate of operations that threw.
	ExceptionRates() Rate
	// RunRates is the rate of all operations.
	RunRates() Rate
}

// RateCheckerConfig configures a RateChecker.
type RateCheckerConfig struct {
	// Name is reported by Name(). Default: "docker"
	Name string

	// LowWatermark is the ratio both signals must drop below to recover.
	// Default: 0.4
	LowWatermark float64

	// HighWatermark is the ratio either signal must exceed to turn unhealthy.
	// Default: 0.8
	HighWatermark float64

	// Interval is the background evaluation period. Default: 30 seconds
	Interval time.Duration

	// Logger receives ratio observations. Default: no-op
	Logger observe.Logger

	// LogEvery bounds how often a steady non-zero ratio is logged.
	// Default: 1 minute
	LogEvery time.Duration
}

// RateChecker turns the timeout and exception ratios into one verdict with
// hysteresis: either ratio above the high watermark makes it unhealthy, and
// it only recovers once both ratios are below the low watermark.
type RateChecker struct {
	config RateCheckerConfig
	rates  FailureRates

	mu     sync.Mutex
	reason string
	logs   rate.Sometimes

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRateChecker creates a RateChecker. A zero HighWatermark takes the
// default, as does LowWatermark when both are zero. The result must satisfy
// 0 <= low < high <= 1.
func NewRateChecker(rates FailureRates, config RateCheckerConfig) (*RateChecker, error) {
	if config.Name == "" {
		config.Name = "docker"
	}
	if config.HighWatermark == 0 {
		if config.LowWatermark == 0 {
			config.LowWatermark = DefaultLowWatermark
		}
		config.HighWatermark = DefaultHighWatermark
	}
	if config.LowWatermark < 0 || config.LowWatermark >= config.HighWatermark || config.HighWatermark > 1 {
		return nil, fmt.Errorf("%w: low=%v high=%v", ErrInvalidWatermarks, config.LowWatermark, config.HighWatermark)
	}
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.LogEvery <= 0 {
		config.LogEvery = time.Minute
	}

	return &RateChecker{
		config: config,
		rates:  rates,
		logs:   rate.Sometimes{First: 1, Interval: config.LogEvery},
	}, nil
}

// Ratio divides two rates. A denominator below 0.1 is not statistically
// meaningful and yields 0, as does a NaN or infinite input.
func Ratio(numerator, denominator float64) float64 {
	if !finite(numerator) || !finite(denominator) || denominator < minDenominatorRate {
		return 0.0
	}
	return numerator / denominator
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Name returns the name of this checker.
func (c *RateChecker) Name() string {
	return c.config.Name
}

// Config returns the effective configuration.
func (c *RateChecker) Config() RateCheckerConfig {
	return c.config
}

// Check evaluates the current rates. Probes always see a fresh evaluation.
func (c *RateChecker) Check(ctx context.Context) Result {
	return c.Evaluate(ctx)
}

// Evaluate samples the rates and advances the hysteresis state. Both the
// background ticker and probes call it; calls are serialized.
func (c *RateChecker) Evaluate(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	runs := c.rates.RunRates().FiveMinuteRate()
	timeoutRatio := Ratio(c.rates.TimeoutRates().FiveMinuteRate(), runs)
	exceptionRatio := Ratio(c.rates.ExceptionRates().FiveMinuteRate(), runs)

	previous := c.reason

	if timeoutRatio > c.config.HighWatermark {
		c.reason = ReasonTimeouts
	}
	if exceptionRatio > c.config.HighWatermark {
		c.reason = ReasonExceptions
	}
	// Recovery needs both signals quiet, whichever one tripped.
	if timeoutRatio < c.config.LowWatermark && exceptionRatio < c.config.LowWatermark {
		c.reason = ""
	}

	fields := []observe.Field{
		observe.F("timeout_ratio", timeoutRatio),
		observe.F("exception_ratio", exceptionRatio),
	}
	if c.reason != previous {
		c.config.Logger.Info(ctx, "rate verdict changed", append(fields, observe.F("reason", c.reason))...)
	} else if timeoutRatio > 0 || exceptionRatio > 0 {
		c.logs.Do(func() {
			c.config.Logger.Info(ctx, "failure ratios above zero", fields...)
		})
	}

	details := map[string]any{
		"timeout_ratio":   timeoutRatio,
		"exception_ratio": exceptionRatio,
	}
	if c.reason != "" {
		return Unhealthy(c.reason).WithDetails(details)
	}
	return Healthy().WithDetails(details)
}

// Start evaluates every Interval until Stop is called or ctx is done. The
// first evaluation happens one interval after Start.
func (c *RateChecker) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx, c.done)
	return nil
}

func (c *RateChecker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Evaluate(ctx)
		}
	}
}

// Stop cancels the background ticker and waits for an in-flight evaluation.
// The last verdict is kept.
func (c *RateChecker) Stop() {
	c.lifeMu.Lock()
	cancel, done := c.cancel, c.done
	c.lifeMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

var (
	_ Checker = (*RateChecker)(nil)
	_ Service = (*RateChecker)(nil)
)
