package meter

import (
	"sync"
	"sync/atomic"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// TickInterval is how often a Meter folds pending events into its averages.
// It matches the fixed tick of the go-metrics moving averages.
const TickInterval = 5 * time.Second

// Rates is a snapshot of a meter's moving averages, in events per second.
type Rates struct {
	OneMinute     float64
	FiveMinute    float64
	FifteenMinute float64
}

// FiveMinuteRate returns the five-minute moving average.
func (r Rates) FiveMinuteRate() float64 { return r.FiveMinute }

// Meter counts events and tracks their one, five and fifteen minute rates.
// Unlike metrics.Meter it ticks lazily on Mark and read against its own
// clock, with no arbiter goroutine.
type Meter struct {
	now   func() time.Time
	count atomic.Int64

	m1, m5, m15 metrics.EWMA

	mu       sync.Mutex
	lastTick time.Time
}

// NewMeter creates a meter using the wall clock.
func NewMeter() *Meter {
	return newMeter(time.Now)
}

func newMeter(now func() time.Time) *Meter {
	return &Meter{
		now:      now,
		m1:       metrics.NewEWMA1(),
		m5:       metrics.NewEWMA5(),
		m15:      metrics.NewEWMA15(),
		lastTick: now(),
	}
}

// Mark records n events. Counts below one are ignored so rates stay
// non-negative.
func (m *Meter) Mark(n int64) {
	if n < 1 {
		return
	}
	m.tickIfNecessary()
	m.count.Add(n)
	m.m1.Update(n)
	m.m5.Update(n)
	m.m15.Update(n)
}

// Count returns the total number of events marked.
func (m *Meter) Count() int64 {
	return m.count.Load()
}

// Rates returns the current moving averages.
func (m *Meter) Rates() Rates {
	m.tickIfNecessary()
	return Rates{
		OneMinute:     m.m1.Rate(),
		FiveMinute:    m.m5.Rate(),
		FifteenMinute: m.m15.Rate(),
	}
}

// FiveMinuteRate returns the five-minute moving average.
func (m *Meter) FiveMinuteRate() float64 {
	m.tickIfNecessary()
	return m.m5.Rate()
}

// tickIfNecessary catches up on every whole tick elapsed since the last one.
func (m *Meter) tickIfNecessary() {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.now().Sub(m.lastTick)
	if elapsed < TickInterval {
		return
	}

	ticks := int(elapsed / TickInterval)
	m.lastTick = m.lastTick.Add(time.Duration(ticks) * TickInterval)
	for i := 0; i < ticks; i++ {
		m.m1.Tick()
		m.m5.Tick()
		m.m15.Tick()
	}
}
