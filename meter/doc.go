// Package meter counts supervisor events and derives exponentially weighted
// one, five and fifteen minute rates from them.
//
// A Meter is marked whenever an event happens and ticks its go-metrics EWMAs
// lazily every five seconds when it is marked or read, so idle meters cost
// nothing. Rates are events per second.
//
// SupervisorMetrics bundles the three meters the docker health checker
// compares (docker timeouts, container exceptions, supervisor runs) and
// mirrors each mark to OpenTelemetry counters and five-minute rate gauges.
// It satisfies health.FailureRates:
//
//	sm, err := meter.NewSupervisorMetrics(obs.Meter())
//	if err != nil {
//	    return err
//	}
//	checker, err := health.NewRateChecker(sm, health.RateCheckerConfig{})
package meter
