package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Rejecting calls
	StateHalfOpen              // Probationary, limited trial calls
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CancellationPolicy decides how a context cancellation observed while
// awaiting the wrapped operation is recorded.
type CancellationPolicy int

const (
	// CancelCountsAsFailure records caller cancellation as a failure.
	CancelCountsAsFailure CancellationPolicy = iota
	// CancelIgnored propagates the error without touching the counters.
	CancelIgnored
)

// Operation is an arbitrary asynchronous call wrapped by a breaker.
type Operation func(ctx context.Context) (any, error)

// Settings holds the immutable configuration of a single breaker.
type Settings struct {
	FailureThreshold   int
	RecoveryTimeout    time.Duration
	HalfOpenMaxCalls   int
	SuccessThreshold   int
	CancellationPolicy CancellationPolicy

	// HistorySize bounds the call-outcome window used for error-rate
	// reporting. Zero means DefaultHistorySize.
	HistorySize int

	// OnStateChange, if set, is invoked after every state transition.
	// It runs outside the breaker's lock and must not block.
	OnStateChange func(name string, from, to State)
}

// DefaultHistorySize is the outcome window capacity used when
// Settings.HistorySize is zero.
const DefaultHistorySize = 100

func (s Settings) Validate() error {
	return validation.Errors{
		"failure_threshold":   validation.Validate(s.FailureThreshold, validation.Required, validation.Min(1)),
		"recovery_timeout":    validatePositiveDuration(s.RecoveryTimeout),
		"half_open_max_calls": validation.Validate(s.HalfOpenMaxCalls, validation.Required, validation.Min(1)),
		"success_threshold":   validation.Validate(s.SuccessThreshold, validation.Required, validation.Min(1)),
		"history_size":        validation.Validate(s.HistorySize, validation.Min(0)),
	}.Filter()
}

func validatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration")
	}
	return nil
}

// CircuitBreaker is a per-endpoint failure-tracking state machine.
// The mutex guards only the breaker's own fields; it is never held
// while the wrapped operation runs, so a slow call on one breaker
// cannot block callers of any other.
type CircuitBreaker struct {
	name     string
	settings Settings
	logger   *slog.Logger

	mutex         sync.Mutex
	state         State
	failures      int
	successes     int
	halfOpenCalls int
	lastFailure   time.Time
	window        *window
}

// New creates a breaker in the closed state. Settings are validated
// once here and never change afterwards.
func New(name string, settings Settings, logger *slog.Logger) (*CircuitBreaker, error) {
	if name == "" {
		return nil, errors.New("circuitbreaker: name must not be empty")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	size := settings.HistorySize
	if size == 0 {
		size = DefaultHistorySize
	}

	return &CircuitBreaker{
		name:     name,
		settings: settings,
		logger:   logger,
		state:    StateClosed,
		window:   newWindow(size),
	}, nil
}

// Name returns the breaker's registry name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs op through the breaker. The operation executes outside the
// breaker's lock. On success its result is returned unchanged; on
// failure its own error is recorded and re-raised. A rejected call
// returns an *OpenError without invoking op at all.
func (cb *CircuitBreaker) Call(ctx context.Context, op Operation) (any, error) {
	if err := cb.admit(); err != nil {
		cb.logger.Warn("call rejected",
			slog.String("breaker", cb.name),
			slog.String("error", err.Error()))
		return nil, err
	}

	result, err := op(ctx)
	if err != nil {
		if cb.ignoresCancellation(err) {
			cb.logger.Debug("call cancelled, not recorded",
				slog.String("breaker", cb.name))
			return nil, err
		}

		cb.recordFailure()
		cb.logger.Warn("call failed",
			slog.String("breaker", cb.name),
			slog.String("error", err.Error()))
		return nil, err
	}

	cb.recordSuccess()
	return result, nil
}

// State reports the breaker state, lazily moving an open breaker to
// half-open once the recovery timeout has elapsed. The transition is
// evaluated here rather than by a background timer.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	transition := cb.refreshLocked(time.Now())
	state := cb.state
	cb.mutex.Unlock()

	cb.notify(transition)
	return state
}

// Reset forces the breaker back to closed with all counters at zero
// and the outcome window cleared. Intended for operator use.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCalls = 0
	cb.lastFailure = time.Time{}
	cb.window.clear()
	cb.mutex.Unlock()

	if from != StateClosed {
		cb.notify(&stateChange{from: from, to: StateClosed})
	}
	cb.logger.Info("breaker reset", slog.String("breaker", cb.name))
}

// admit decides under the lock whether a call may proceed, performing
// the lazy open -> half-open transition first.
func (cb *CircuitBreaker) admit() error {
	cb.mutex.Lock()

	now := time.Now()
	transition := cb.refreshLocked(now)

	switch cb.state {
	case StateOpen:
		remaining := cb.settings.RecoveryTimeout - now.Sub(cb.lastFailure)
		if remaining < 0 {
			remaining = 0
		}
		cb.mutex.Unlock()
		cb.notify(transition)
		return &OpenError{Breaker: cb.name, RetryAfter: remaining}

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.settings.HalfOpenMaxCalls {
			cb.mutex.Unlock()
			cb.notify(transition)
			// Still probationary, so report the full timeout.
			return &OpenError{Breaker: cb.name, RetryAfter: cb.settings.RecoveryTimeout}
		}
		cb.halfOpenCalls++
	}

	cb.mutex.Unlock()
	cb.notify(transition)
	return nil
}

// refreshLocked applies the timed open -> half-open edge. Caller holds
// the mutex. Returns the transition for notification after unlock.
func (cb *CircuitBreaker) refreshLocked(now time.Time) *stateChange {
	if cb.state != StateOpen {
		return nil
	}
	if now.Sub(cb.lastFailure) < cb.settings.RecoveryTimeout {
		return nil
	}

	cb.state = StateHalfOpen
	cb.successes = 0
	cb.halfOpenCalls = 0
	return &stateChange{from: StateOpen, to: StateHalfOpen}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()

	now := time.Now()
	cb.window.record(true, now)

	var transition *stateChange
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.settings.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
			cb.halfOpenCalls = 0
			transition = &stateChange{from: StateHalfOpen, to: StateClosed}
		}
	}

	cb.mutex.Unlock()

	if transition != nil {
		cb.logger.Info("breaker closed",
			slog.String("breaker", cb.name))
	}
	cb.notify(transition)
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()

	now := time.Now()
	cb.window.record(false, now)
	cb.lastFailure = now

	var transition *stateChange
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.settings.FailureThreshold {
			cb.state = StateOpen
			transition = &stateChange{from: StateClosed, to: StateOpen}
		}
	case StateHalfOpen:
		// A single failure during probation reopens immediately,
		// discarding any partial success count.
		cb.state = StateOpen
		cb.successes = 0
		cb.halfOpenCalls = 0
		transition = &stateChange{from: StateHalfOpen, to: StateOpen}
	}

	cb.mutex.Unlock()

	if transition != nil {
		cb.logger.Warn("breaker opened",
			slog.String("breaker", cb.name),
			slog.String("from", transition.from.String()))
	}
	cb.notify(transition)
}

func (cb *CircuitBreaker) ignoresCancellation(err error) bool {
	if cb.settings.CancellationPolicy != CancelIgnored {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type stateChange struct {
	from State
	to   State
}

func (cb *CircuitBreaker) notify(transition *stateChange) {
	if transition == nil || cb.settings.OnStateChange == nil {
		return
	}
	cb.settings.OnStateChange(cb.name, transition.from, transition.to)
}
