// Package watch defines the lifecycle events a coordination store delivers
// for a watched path, and the Source contract the connectivity checker
// consumes them through.
//
// A Source pushes events onto a channel owned by a single consumer. Feed is
// an in-process Source useful for embedding and tests; the redis subpackage
// implements a Source on top of Redis keyspace notifications.
package watch
