package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errDial = errors.New("dial tcp: connection refused")

func TestNewRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.Backoff.Initial != 100*time.Millisecond {
		t.Errorf("Initial = %v, want 100ms", cfg.Backoff.Initial)
	}
	if cfg.Backoff.Max != 30*time.Second {
		t.Errorf("Max = %v, want 30s", cfg.Backoff.Max)
	}
	if cfg.Backoff.Multiplier != 2 {
		t.Errorf("Multiplier = %v, want 2", cfg.Backoff.Multiplier)
	}
}

func fastRetry(attempts int) *Retry {
	return NewRetry(RetryConfig{MaxAttempts: attempts, Backoff: Backoff{Initial: time.Millisecond}})
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := fastRetry(3).Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errDial
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ExhaustedWrapsBoth(t *testing.T) {
	attempts := 0
	err := fastRetry(2).Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errDial
	})

	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("error = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, errDial) {
		t.Errorf("error = %v, want wrapped dial error", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 10, Backoff: Backoff{Initial: time.Hour}})

	ctx, cancel := context.WithCancel(context.Background())
	err := r.Execute(ctx, func(ctx context.Context) error {
		cancel()
		return errDial
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if !errors.Is(err, errDial) {
		t.Errorf("error = %v, want wrapped dial error", err)
	}
}

func TestRetry_Permanent(t *testing.T) {
	errAuth := errors.New("NOAUTH Authentication required")

	attempts := 0
	err := fastRetry(3).Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(fmt.Errorf("ping: %w", errAuth))
	})

	if !errors.Is(err, errAuth) || IsPermanent(err) {
		t.Errorf("Execute() error = %v, want unmarked %v", err, errAuth)
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("permanent errors must not count as exhaustion")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	err := fmt.Errorf("subscribe: %w", Permanent(errDial))
	if !IsPermanent(err) || !errors.Is(err, errDial) {
		t.Errorf("wrapped permanent error lost its marker or cause: %v", err)
	}
	if IsPermanent(errDial) {
		t.Error("plain error reported permanent")
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var attempts []int
	var delays []time.Duration

	r := NewRetry(RetryConfig{
		MaxAttempts: 3,
		Backoff:     Backoff{Initial: time.Millisecond},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
		},
	})

	_ = r.Execute(context.Background(), func(ctx context.Context) error { return errDial })

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("OnRetry attempts = %v, want [1 2]", attempts)
	}
	if delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Errorf("OnRetry delays = %v, want [1ms 2ms]", delays)
	}
}

func TestBackoff_Next(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"first", Backoff{Initial: 10 * time.Millisecond, Max: time.Second, Multiplier: 2}, 1, 10 * time.Millisecond},
		{"exponential", Backoff{Initial: 10 * time.Millisecond, Max: time.Second, Multiplier: 2}, 3, 40 * time.Millisecond},
		{"constant", Backoff{Initial: 10 * time.Millisecond, Max: time.Second, Multiplier: 0.5}, 5, 10 * time.Millisecond},
		{"capped", Backoff{Initial: time.Second, Max: 5 * time.Second, Multiplier: 10}, 5, 5 * time.Second},
		{"large attempt", Backoff{Initial: time.Second, Max: time.Minute, Multiplier: 2}, 500, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backoff.Next(tt.attempt); got != tt.want {
				t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2, Jitter: true}

	for i := 0; i < 50; i++ {
		d := b.Next(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("Next(1) = %v, want within [100ms, 125ms)", d)
		}
	}
}
