// Package circuitbreaker implements the circuit breaker pattern for
// tiered backend access.
//
// A circuit breaker prevents cascading failures by rejecting calls to
// a failing tier. It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Tier failing, calls rejected with a retry-after hint
//   - HALF-OPEN: Testing recovery with a bounded number of trial calls
//
// Usage:
//
//	manager := circuitbreaker.NewManager(log)
//	cb, err := manager.Register("primary", circuitbreaker.Settings{
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  30 * time.Second,
//	    HalfOpenMaxCalls: 3,
//	    SuccessThreshold: 2,
//	})
//	result, err := cb.Call(ctx, func(ctx context.Context) (any, error) {
//	    return client.Fetch(ctx, id)
//	})
//
// The wrapped operation always runs outside the breaker's lock, so a
// slow call never blocks unrelated callers.
package circuitbreaker
