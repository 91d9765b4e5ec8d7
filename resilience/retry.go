package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential delays between attempts.
type Backoff struct {
	// Initial is the delay after the first failure. Default: 100ms
	Initial time.Duration

	// Max caps every delay. Default: 30s
	Max time.Duration

	// Multiplier grows the delay per attempt. Values below 1 give a
	// constant delay. Default: 2
	Multiplier float64

	// Jitter adds up to 25% random delay on top of each step.
	Jitter bool
}

func (b *Backoff) applyDefaults() {
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.Multiplier == 0 {
		b.Multiplier = 2
	}
}

// Next returns the delay that follows failed attempt n, counting from 1.
func (b Backoff) Next(n int) time.Duration {
	d := float64(b.Initial)
	if b.Multiplier > 1 {
		for i := 1; i < n && d < float64(b.Max); i++ {
			d *= b.Multiplier
		}
	}

	delay := b.Max
	if d < float64(b.Max) {
		delay = time.Duration(d)
	}
	if b.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// RetryConfig configures a Retry.
type RetryConfig struct {
	// MaxAttempts counts the initial attempt. Default: 3
	MaxAttempts int

	Backoff Backoff

	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry runs an operation until it succeeds, attempts run out, the error is
// marked Permanent or the context ends.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry handler, filling unset fields with defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	config.Backoff.applyDefaults()
	return &Retry{config: config}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Execute runs op. A permanent error is returned unwrapped from its marker.
// Exhaustion wraps ErrMaxRetriesExceeded and the last error; cancellation
// wraps ctx.Err() and the last error.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if attempt >= r.config.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
		}

		delay := r.config.Backoff.Next(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if werr := sleep(ctx, delay); werr != nil {
			return fmt.Errorf("resilience: %w (last error: %w)", werr, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
