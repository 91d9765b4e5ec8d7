package watch

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrFeedClosed is returned when publishing to a feed with no active watch.
	ErrFeedClosed = errors.New("watch: feed has no active watch")

	// ErrFeedInUse is returned when a feed is watched a second time.
	ErrFeedInUse = errors.New("watch: feed already watched")
)

// Feed is an in-process Source. Events published with Publish are delivered
// in order to the single watch.
type Feed struct {
	// WatchErr, when set, is returned by Watch instead of establishing a watch.
	WatchErr error

	mu      sync.Mutex
	ch      chan Event
	watched string
	done    chan struct{}
}

// NewFeed creates a Feed whose queue buffers up to size events.
func NewFeed(size int) *Feed {
	if size < 0 {
		size = 0
	}
	return &Feed{ch: make(chan Event, size)}
}

// Watch implements Source.
func (f *Feed) Watch(ctx context.Context, path string) (<-chan Event, error) {
	if f.WatchErr != nil {
		return nil, f.WatchErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return nil, ErrFeedInUse
	}

	f.watched = path
	done := make(chan struct{})
	f.done = done
	out := make(chan Event)

	go func() {
		defer close(out)
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.ch:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Path returns the path passed to Watch.
func (f *Feed) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watched
}

// Publish queues an event. It blocks while the queue is full and fails once
// the watch has been cancelled.
func (f *Feed) Publish(ctx context.Context, t EventType, path string) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done == nil {
		return ErrFeedClosed
	}

	select {
	case <-done:
		return ErrFeedClosed
	default:
	}

	ev := Event{Type: t, Path: path, Time: time.Now()}
	select {
	case <-done:
		return ErrFeedClosed
	case <-ctx.Done():
		return ctx.Err()
	case f.ch <- ev:
		return nil
	}
}

var _ Source = (*Feed)(nil)
