package redis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonwraymond/agenthealth/watch"
)

// Keyspace operations that mean the key is gone.
var removedOps = map[string]bool{
	"del":         true,
	"expired":     true,
	"evicted":     true,
	"rename_from": true,
}

// children tracks the known child keys of the watched path.
type children map[string]struct{}

func keyspacePrefix(db int) string {
	return fmt.Sprintf("__keyspace@%d__:", db)
}

func childPattern(path string) string {
	return strings.TrimSuffix(path, "/") + "/*"
}

// translate maps one keyspace notification to a child event and updates the
// known set. It reports false for notifications that change nothing, such as
// removing a key that was never seen.
func (c children) translate(prefix, channel, op string) (watch.Event, bool) {
	key, ok := strings.CutPrefix(channel, prefix)
	if !ok || key == "" {
		return watch.Event{}, false
	}

	_, known := c[key]
	switch {
	case removedOps[op]:
		if !known {
			return watch.Event{}, false
		}
		delete(c, key)
		return watch.Event{Type: watch.EventChildRemoved, Path: key}, true
	case known:
		return watch.Event{Type: watch.EventChildUpdated, Path: key}, true
	default:
		c[key] = struct{}{}
		return watch.Event{Type: watch.EventChildAdded, Path: key}, true
	}
}

// resync replaces the known set with current and returns the events that
// bring a consumer of the old set up to date, removals first.
func (c children) resync(current []string) []watch.Event {
	next := make(children, len(current))
	for _, key := range current {
		next[key] = struct{}{}
	}

	var removed, added []string
	for key := range c {
		if _, ok := next[key]; !ok {
			removed = append(removed, key)
		}
	}
	for key := range next {
		if _, ok := c[key]; !ok {
			added = append(added, key)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)

	events := make([]watch.Event, 0, len(removed)+len(added))
	for _, key := range removed {
		delete(c, key)
		events = append(events, watch.Event{Type: watch.EventChildRemoved, Path: key})
	}
	for _, key := range added {
		c[key] = struct{}{}
		events = append(events, watch.Event{Type: watch.EventChildAdded, Path: key})
	}
	return events
}

// link follows consecutive ping outcomes.
type link struct {
	lostAfter int
	failures  int
}

// observe records a ping outcome and returns the connection event it causes,
// if any.
func (l *link) observe(err error) (watch.EventType, bool) {
	if err == nil {
		if l.failures == 0 {
			return watch.EventInvalid, false
		}
		l.failures = 0
		return watch.EventReconnected, true
	}

	l.failures++
	if l.failures == l.lostAfter {
		return watch.EventConnectionLost, true
	}
	if l.failures == 1 {
		return watch.EventConnectionSuspended, true
	}
	return watch.EventInvalid, false
}
