// Package promrates supplies health.FailureRates from a Prometheus server.
//
// A Sampler runs three instant PromQL queries (timeouts, exceptions, runs) in
// the background and keeps the latest values in memory, so health checks
// never wait on the network. Each query must return a five-minute rate; the
// default queries read the supervisor counters exported by this process:
//
//	sum(rate(supervisor_docker_timeouts_total[5m]))
//
// When a refresh fails the previous values are kept and the error is logged.
// Until the first successful refresh every rate reads as zero.
package promrates
