// Package health decides whether a worker process should report itself
// healthy to the supervisor probing its admin port.
//
// # Core Concepts
//
// A Checker evaluates one signal and returns a Result that is either
// healthy or unhealthy with a reason. Checkers that need background work
// also implement Service.
//
// Two checkers are provided:
//
//   - RateChecker divides the five-minute timeout and exception rates by the
//     run rate and applies hysteresis. Either ratio above the high watermark
//     makes it unhealthy; it recovers only when both ratios are below the low
//     watermark.
//   - ConnectivityChecker follows the lifecycle events of a watched
//     coordination-store path and is unhealthy while the connection is lost,
//     suspended, or not yet established.
//
// # Aggregating
//
//	agg := health.NewAggregator()
//	agg.Register("docker", rateChecker)
//	agg.Register("coordination", connChecker)
//
//	result := agg.Check(ctx) // first unhealthy reason wins
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /healthcheck
package health
