package meter

import (
	"math"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMeter_Count(t *testing.T) {
	m := NewMeter()
	m.Mark(2)
	m.Mark(3)

	if got := m.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
}

func TestMeter_RatesAfterFirstTick(t *testing.T) {
	clock := newFakeClock()
	m := newMeter(clock.Now)

	m.Mark(300)
	if got := m.FiveMinuteRate(); got != 0 {
		t.Fatalf("FiveMinuteRate() before a tick = %v, want 0", got)
	}

	clock.Advance(TickInterval)
	rates := m.Rates()
	for name, got := range map[string]float64{
		"one":     rates.OneMinute,
		"five":    rates.FiveMinute,
		"fifteen": rates.FifteenMinute,
	} {
		if math.Abs(got-60) > epsilon {
			t.Errorf("%s minute rate = %v, want 60", name, got)
		}
	}
}

func TestMeter_CatchesUpOnMissedTicks(t *testing.T) {
	clock := newFakeClock()
	m := newMeter(clock.Now)

	m.Mark(300)
	clock.Advance(TickInterval)
	m.Rates()

	clock.Advance(5 * time.Minute)
	want := 60 * math.Exp(-1)
	if got := m.FiveMinuteRate(); math.Abs(got-want) > 1e-6 {
		t.Errorf("FiveMinuteRate() = %v, want %v", got, want)
	}
}

func TestMeter_PartialIntervalDoesNotTick(t *testing.T) {
	clock := newFakeClock()
	m := newMeter(clock.Now)

	m.Mark(10)
	clock.Advance(TickInterval - time.Millisecond)

	if got := m.Rates(); got != (Rates{}) {
		t.Errorf("Rates() = %+v, want zero", got)
	}
}

func TestRates_FiveMinuteRate(t *testing.T) {
	r := Rates{OneMinute: 1, FiveMinute: 5, FifteenMinute: 15}
	if got := r.FiveMinuteRate(); got != 5 {
		t.Errorf("FiveMinuteRate() = %v, want 5", got)
	}
}

func TestMeter_ConcurrentMark(t *testing.T) {
	m := NewMeter()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Mark(1)
				_ = m.Rates()
			}
		}()
	}
	wg.Wait()

	if got := m.Count(); got != 800 {
		t.Errorf("Count() = %d, want 800", got)
	}
}
