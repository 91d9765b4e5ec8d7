package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/agenthealth/observe"
	"github.com/jonwraymond/agenthealth/watch"
)

// Reasons reported by ConnectivityChecker.
const (
	ReasonUnknown             = "UNKNOWN"
	ReasonConnectionLost      = "CONNECTION_LOST"
	ReasonConnectionSuspended = "CONNECTION_SUSPENDED"
	ReasonUnrecognizedEvent   = "UNRECOGNIZED_EVENT"
)

// ApplyEvent returns the reason that follows the given event. An empty
// reason means connected. Unrecognized event types return
// ErrUnrecognizedEvent and leave the reason unchanged.
func ApplyEvent(reason string, ev watch.Event) (string, error) {
	switch ev.Type {
	case watch.EventInitialized,
		watch.EventReconnected,
		watch.EventChildAdded,
		watch.EventChildRemoved,
		watch.EventChildUpdated:
		return "", nil
	case watch.EventConnectionLost:
		return ReasonConnectionLost, nil
	case watch.EventConnectionSuspended:
		return ReasonConnectionSuspended, nil
	default:
		return reason, fmt.Errorf("%w: %v", ErrUnrecognizedEvent, ev.Type)
	}
}

// ConnectivityCheckerConfig configures a ConnectivityChecker.
type ConnectivityCheckerConfig struct {
	// Name is reported by Name(). Default: "coordination"
	Name string

	// Path is the watched path. Default: "/status/hosts"
	Path string

	// Logger receives state transitions. Default: no-op
	Logger observe.Logger
}

// ConnectivityChecker reports whether the coordination store connection is
// up, based on the lifecycle events of a watched path. It is unhealthy with
// reason "UNKNOWN" until the first event arrives.
type ConnectivityChecker struct {
	config ConnectivityCheckerConfig
	source watch.Source

	// nil means connected; written only by the consumer goroutine.
	reason atomic.Pointer[string]
	// set once when the watch stops on its own.
	stopErr atomic.Pointer[error]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	errc   chan error
}

// NewConnectivityChecker creates a ConnectivityChecker reading from source.
func NewConnectivityChecker(source watch.Source, config ConnectivityCheckerConfig) *ConnectivityChecker {
	if config.Name == "" {
		config.Name = "coordination"
	}
	if config.Path == "" {
		config.Path = "/status/hosts"
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	c := &ConnectivityChecker{
		config: config,
		source: source,
		errc:   make(chan error, 1),
	}
	unknown := ReasonUnknown
	c.reason.Store(&unknown)
	return c
}

// Name returns the name of this checker.
func (c *ConnectivityChecker) Name() string {
	return c.config.Name
}

// Reason returns the current reason, empty when connected.
func (c *ConnectivityChecker) Reason() string {
	if r := c.reason.Load(); r != nil {
		return *r
	}
	return ""
}

// Check reports the last observed connection state. Once the watch has
// stopped on its own the result carries the error that stopped it.
func (c *ConnectivityChecker) Check(ctx context.Context) Result {
	r := c.reason.Load()
	if r == nil {
		return Healthy()
	}
	result := Unhealthy(*r)
	if err := c.stopErr.Load(); err != nil {
		result = result.WithError(*err)
	}
	return result
}

// Start establishes the watch. Failure to establish it is returned.
func (c *ConnectivityChecker) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := c.source.Watch(ctx, c.config.Path)
	if err != nil {
		cancel()
		return fmt.Errorf("health: watch %s: %w", c.config.Path, err)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(ctx, events, c.done)

	c.config.Logger.Info(ctx, "connectivity watch started", observe.F("path", c.config.Path))
	return nil
}

func (c *ConnectivityChecker) consume(ctx context.Context, events <-chan watch.Event, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// Without a cancel nothing will ever clear the reason again.
				if ctx.Err() == nil {
					c.fail(ctx, ReasonConnectionLost, fmt.Errorf("%w: %s", ErrWatchClosed, c.config.Path))
				}
				return
			}
			current := c.Reason()
			next, err := ApplyEvent(current, ev)
			if err != nil {
				c.fail(ctx, ReasonUnrecognizedEvent, err)
				return
			}
			c.set(ctx, current, next, ev)
		}
	}
}

// set stores next whenever it differs from current, including transitions
// between two different failure reasons.
func (c *ConnectivityChecker) set(ctx context.Context, current, next string, ev watch.Event) {
	if current == next {
		return
	}
	if next == "" {
		c.reason.Store(nil)
	} else {
		c.reason.Store(&next)
	}
	c.config.Logger.Info(ctx, "connectivity changed",
		observe.F("event", ev.Type.String()),
		observe.F("from", current),
		observe.F("to", next),
	)
}

// fail records why the watch stopped and reports it on Err. The consumer
// calls it at most once.
func (c *ConnectivityChecker) fail(ctx context.Context, reason string, err error) {
	c.stopErr.Store(&err)
	c.reason.Store(&reason)
	c.config.Logger.Error(ctx, "connectivity watch stopped",
		observe.F("path", c.config.Path),
		observe.F("reason", reason),
		observe.F("error", err),
	)
	select {
	case c.errc <- err:
	default:
	}
}

// Err delivers the fatal error that stopped the watch, if any. The owner of
// the process is expected to exit when it fires.
func (c *ConnectivityChecker) Err() <-chan error {
	return c.errc
}

// Stop cancels the watch and waits for the consumer to exit. The last known
// reason keeps being reported.
func (c *ConnectivityChecker) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

var (
	_ Checker = (*ConnectivityChecker)(nil)
	_ Service = (*ConnectivityChecker)(nil)
)
