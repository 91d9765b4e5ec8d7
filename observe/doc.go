// Package observe provides the logging, metrics and tracing used by the
// health checkers.
//
// It is a pure instrumentation library: no evaluation logic and no I/O beyond
// exporter setup. The health aggregator wires a Middleware around every
// registered checker, and long-lived components take a Logger scoped with
// their own fields.
package observe
