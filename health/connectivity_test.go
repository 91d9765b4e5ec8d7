package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/agenthealth/watch"
)

func TestApplyEvent(t *testing.T) {
	tests := []struct {
		event   watch.EventType
		from    string
		want    string
		wantErr bool
	}{
		{watch.EventInitialized, ReasonUnknown, "", false},
		{watch.EventReconnected, ReasonConnectionLost, "", false},
		{watch.EventChildAdded, ReasonConnectionSuspended, "", false},
		{watch.EventChildRemoved, ReasonUnknown, "", false},
		{watch.EventChildUpdated, "", "", false},
		{watch.EventConnectionLost, "", ReasonConnectionLost, false},
		{watch.EventConnectionSuspended, ReasonConnectionLost, ReasonConnectionSuspended, false},
		{watch.EventInvalid, ReasonConnectionLost, ReasonConnectionLost, true},
		{watch.EventType(99), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.event.String(), func(t *testing.T) {
			got, err := ApplyEvent(tt.from, watch.Event{Type: tt.event})
			if tt.wantErr {
				if !errors.Is(err, ErrUnrecognizedEvent) {
					t.Errorf("error = %v, want %v", err, ErrUnrecognizedEvent)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ApplyEvent(%q, %v) = %q, want %q", tt.from, tt.event, got, tt.want)
			}
		})
	}
}

func startConnectivity(t *testing.T) (*ConnectivityChecker, *watch.Feed) {
	t.Helper()
	feed := watch.NewFeed(8)
	c := NewConnectivityChecker(feed, ConnectivityCheckerConfig{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c, feed
}

func publish(t *testing.T, feed *watch.Feed, et watch.EventType) {
	t.Helper()
	if err := feed.Publish(context.Background(), et, ""); err != nil {
		t.Fatalf("Publish(%v) error = %v", et, err)
	}
}

func waitReason(t *testing.T, c *ConnectivityChecker, want string) {
	t.Helper()
	waitFor(t, func() bool { return c.Reason() == want })

	result := c.Check(context.Background())
	if want == "" {
		if !result.IsHealthy() {
			t.Fatalf("Check() = unhealthy(%q), want healthy", result.Reason)
		}
		return
	}
	if result.IsHealthy() || result.Reason != want {
		t.Fatalf("Check() = %v(%q), want unhealthy(%q)", result.Status, result.Reason, want)
	}
}

func TestConnectivityChecker_Defaults(t *testing.T) {
	feed := watch.NewFeed(0)
	c := NewConnectivityChecker(feed, ConnectivityCheckerConfig{})

	if c.Name() != "coordination" {
		t.Errorf("Name() = %q, want coordination", c.Name())
	}
	result := c.Check(context.Background())
	if result.IsHealthy() || result.Reason != ReasonUnknown {
		t.Errorf("initial Check() = %v(%q), want unhealthy(UNKNOWN)", result.Status, result.Reason)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()
	if feed.Path() != "/status/hosts" {
		t.Errorf("watched path = %q, want /status/hosts", feed.Path())
	}
}

func TestConnectivityChecker_UnknownLostThenChildAdded(t *testing.T) {
	c, feed := startConnectivity(t)

	waitReason(t, c, ReasonUnknown)

	publish(t, feed, watch.EventConnectionLost)
	waitReason(t, c, ReasonConnectionLost)

	publish(t, feed, watch.EventChildAdded)
	waitReason(t, c, "")
}

func TestConnectivityChecker_LostThenSuspendedIsVisible(t *testing.T) {
	c, feed := startConnectivity(t)

	publish(t, feed, watch.EventConnectionLost)
	waitReason(t, c, ReasonConnectionLost)

	publish(t, feed, watch.EventConnectionSuspended)
	waitReason(t, c, ReasonConnectionSuspended)
}

func TestConnectivityChecker_ConnectedEventsClear(t *testing.T) {
	connected := []watch.EventType{
		watch.EventInitialized,
		watch.EventReconnected,
		watch.EventChildAdded,
		watch.EventChildRemoved,
		watch.EventChildUpdated,
	}

	for _, et := range connected {
		t.Run(et.String(), func(t *testing.T) {
			c, feed := startConnectivity(t)

			publish(t, feed, watch.EventConnectionSuspended)
			waitReason(t, c, ReasonConnectionSuspended)

			publish(t, feed, et)
			waitReason(t, c, "")
		})
	}
}

func TestConnectivityChecker_UnrecognizedEventIsFatal(t *testing.T) {
	c, feed := startConnectivity(t)

	publish(t, feed, watch.EventInitialized)
	waitReason(t, c, "")

	publish(t, feed, watch.EventType(42))

	select {
	case err := <-c.Err():
		if !errors.Is(err, ErrUnrecognizedEvent) {
			t.Errorf("Err() = %v, want %v", err, ErrUnrecognizedEvent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fatal error delivered")
	}
	waitReason(t, c, ReasonUnrecognizedEvent)

	if result := c.Check(context.Background()); !errors.Is(result.Error, ErrUnrecognizedEvent) {
		t.Errorf("Check().Error = %v, want %v", result.Error, ErrUnrecognizedEvent)
	}
}

func TestConnectivityChecker_CheckHasNoErrorWhileWatching(t *testing.T) {
	c, feed := startConnectivity(t)

	if result := c.Check(context.Background()); result.Error != nil {
		t.Errorf("Check().Error before events = %v, want nil", result.Error)
	}
	publish(t, feed, watch.EventConnectionLost)
	waitReason(t, c, ReasonConnectionLost)
	if result := c.Check(context.Background()); result.Error != nil {
		t.Errorf("Check().Error while lost = %v, want nil", result.Error)
	}
}

func TestConnectivityChecker_StartFailurePropagates(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewConnectivityChecker(&watch.Feed{WatchErr: boom}, ConnectivityCheckerConfig{Path: "/status/hosts"})

	err := c.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
	if c.Reason() != ReasonUnknown {
		t.Errorf("Reason() = %q, want UNKNOWN", c.Reason())
	}

	// A failed Start leaves the checker startable and Stop harmless.
	c.Stop()
}

func TestConnectivityChecker_StartTwice(t *testing.T) {
	c, _ := startConnectivity(t)
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestConnectivityChecker_StopKeepsLastReason(t *testing.T) {
	feed := watch.NewFeed(1)
	c := NewConnectivityChecker(feed, ConnectivityCheckerConfig{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	publish(t, feed, watch.EventConnectionLost)
	waitReason(t, c, ReasonConnectionLost)

	c.Stop()
	c.Stop()

	if err := feed.Publish(context.Background(), watch.EventReconnected, ""); !errors.Is(err, watch.ErrFeedClosed) {
		t.Errorf("Publish() after Stop error = %v, want %v", err, watch.ErrFeedClosed)
	}
	waitReason(t, c, ReasonConnectionLost)
}

type closedSource struct{}

func (closedSource) Watch(ctx context.Context, path string) (<-chan watch.Event, error) {
	ch := make(chan watch.Event)
	close(ch)
	return ch, nil
}

func TestConnectivityChecker_SourceClosesChannel(t *testing.T) {
	c := NewConnectivityChecker(closedSource{}, ConnectivityCheckerConfig{Path: "/status/hosts"})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Stop)

	select {
	case err := <-c.Err():
		if !errors.Is(err, ErrWatchClosed) {
			t.Errorf("Err() = %v, want %v", err, ErrWatchClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("closed watch not reported")
	}

	waitReason(t, c, ReasonConnectionLost)
	if result := c.Check(context.Background()); !errors.Is(result.Error, ErrWatchClosed) {
		t.Errorf("Check().Error = %v, want %v", result.Error, ErrWatchClosed)
	}
}

func TestConnectivityChecker_CancelledWatchIsNotFatal(t *testing.T) {
	c, feed := startConnectivity(t)

	publish(t, feed, watch.EventInitialized)
	waitReason(t, c, "")

	// A cancelled watch closes its channel too; that is not a failure.
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	cancel()
	waitFor(t, func() bool {
		select {
		case <-c.done:
			return true
		default:
			return false
		}
	})

	if c.Reason() != "" {
		t.Errorf("Reason() after cancel = %q, want connected", c.Reason())
	}
	select {
	case err := <-c.Err():
		t.Errorf("Err() after cancel = %v, want none", err)
	default:
	}
}
