// Package resilience retries operations against remote dependencies with
// backoff.
//
// It is used to establish connections that a health checker depends on, such
// as the coordination store client, before the checker starts watching:
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 5,
//	    Backoff:     resilience.Backoff{Initial: 200 * time.Millisecond, Jitter: true},
//	})
//
//	err := retry.Execute(ctx, func(ctx context.Context) error {
//	    err := client.Ping(ctx).Err()
//	    if isAuthError(err) {
//	        return resilience.Permanent(err)
//	    }
//	    return err
//	})
//
// When every attempt fails the returned error wraps both ErrMaxRetriesExceeded
// and the last attempt's error. Errors marked Permanent stop the loop and are
// returned without the marker.
package resilience
