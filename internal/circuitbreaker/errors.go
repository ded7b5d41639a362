package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOpen matches any *OpenError via errors.Is.
	ErrOpen = errors.New("circuit open")
	// ErrDuplicateBreaker is returned when registering an existing name.
	ErrDuplicateBreaker = errors.New("breaker already registered")
	// ErrBreakerNotFound is returned for lookups of unknown names.
	ErrBreakerNotFound = errors.New("breaker not found")
)

// OpenError is returned when a breaker rejects a call outright, before
// the wrapped operation is invoked. RetryAfter is how long the caller
// should wait before another attempt may be admitted.
type OpenError struct {
	Breaker    string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %q, retry in %.1fs", e.Breaker, e.RetryAfter.Seconds())
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}
