// Package redis implements watch.Source on Redis keyspace notifications.
//
// Children of a watched path are the keys below it: watching "/status/hosts"
// follows every key matching "/status/hosts/*". The source keeps the set of
// known children (seeded with SCAN) so a write to a new key is reported as
// CHILD_ADDED and a write to a known key as CHILD_UPDATED.
//
// Connection health is tracked with a periodic PING. The first failed ping
// reports CONNECTION_SUSPENDED, LostAfter consecutive failures report
// CONNECTION_LOST, and the next successful ping reports
// CONNECTION_RECONNECTED after resynchronising the child set.
//
// Keyspace notifications must be enabled on the server, for example
// notify-keyspace-events "KA". With ConfigureNotifications set the source
// enables them itself.
package redis
