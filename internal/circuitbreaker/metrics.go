package circuitbreaker

import "time"

// Metrics is a read-only, JSON-serializable view of a breaker.
type Metrics struct {
	Name               string     `json:"name"`
	State              string     `json:"state"`
	FailureCount       int        `json:"failure_count"`
	SuccessCount       int        `json:"success_count"`
	TotalCallsInWindow int        `json:"total_calls_in_window"`
	ErrorRate          float64    `json:"error_rate"`
	LastFailureTime    *time.Time `json:"last_failure_time,omitempty"`
	TimeUntilRetry     *float64   `json:"time_until_retry_seconds,omitempty"`
}

// Metrics returns a point-in-time snapshot of the breaker. Reading the
// snapshot never mutates state; an open breaker past its recovery
// timeout still reports OPEN here until the next call attempt.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	total, errorRate := cb.window.stats()

	m := Metrics{
		Name:               cb.name,
		State:              cb.state.String(),
		FailureCount:       cb.failures,
		SuccessCount:       cb.successes,
		TotalCallsInWindow: total,
		ErrorRate:          errorRate,
	}

	if !cb.lastFailure.IsZero() {
		t := cb.lastFailure
		m.LastFailureTime = &t
	}

	if cb.state == StateOpen {
		remaining := (cb.settings.RecoveryTimeout - time.Since(cb.lastFailure)).Seconds()
		if remaining < 0 {
			remaining = 0
		}
		m.TimeUntilRetry = &remaining
	}

	return m
}
