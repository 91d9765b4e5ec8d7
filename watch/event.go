package watch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventType is the kind of lifecycle event delivered by a watch.
type EventType int

// Event types. The zero value is deliberately not a valid event.
const (
	EventInvalid EventType = iota
	EventInitialized
	EventReconnected
	EventChildAdded
	EventChildRemoved
	EventChildUpdated
	EventConnectionLost
	EventConnectionSuspended
)

var eventNames = map[EventType]string{
	EventInitialized:         "INITIALIZED",
	EventReconnected:         "CONNECTION_RECONNECTED",
	EventChildAdded:          "CHILD_ADDED",
	EventChildRemoved:        "CHILD_REMOVED",
	EventChildUpdated:        "CHILD_UPDATED",
	EventConnectionLost:      "CONNECTION_LOST",
	EventConnectionSuspended: "CONNECTION_SUSPENDED",
}

// String returns the wire name of the event type.
func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// ErrUnknownEventType indicates a name that maps to no event type.
var ErrUnknownEventType = errors.New("watch: unknown event type")

// ParseEventType maps a wire name such as "CHILD_ADDED" to its EventType.
func ParseEventType(name string) (EventType, error) {
	for t, n := range eventNames {
		if n == name {
			return t, nil
		}
	}
	return EventInvalid, fmt.Errorf("%w: %q", ErrUnknownEventType, name)
}

// Event is a single notification about the watched path.
type Event struct {
	Type EventType

	// Path is the child path for CHILD_* events, empty otherwise.
	Path string

	// Data is the child payload for CHILD_ADDED and CHILD_UPDATED when the
	// source caches data.
	Data []byte

	// Time is when the source observed the event.
	Time time.Time
}

// Source establishes a watch on a path.
//
// Contract:
//   - Watch returns an error when the watch cannot be established; no channel
//     is returned in that case.
//   - Events start flowing only after Watch returns.
//   - The channel is closed once ctx is cancelled and the source has released
//     its resources.
type Source interface {
	Watch(ctx context.Context, path string) (<-chan Event, error)
}
