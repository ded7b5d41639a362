package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Operation is an arbitrary asynchronous call to be retried.
type Operation func(ctx context.Context) (any, error)

// ErrExhausted matches any *ExhaustedError via errors.Is.
var ErrExhausted = errors.New("retry exhausted")

// ExhaustedError is returned once every attempt has failed. It wraps
// the last observed error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Policy is a validated, immutable retry configuration. It carries no
// state between invocations; every Execute call is independent.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool

	logger *slog.Logger
}

// New validates the configuration once, at construction.
func New(maxAttempts int, baseDelay, maxDelay time.Duration, exponentialBase float64, jitter bool, logger *slog.Logger) (*Policy, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Policy{
		MaxAttempts:     maxAttempts,
		BaseDelay:       baseDelay,
		MaxDelay:        maxDelay,
		ExponentialBase: exponentialBase,
		Jitter:          jitter,
		logger:          logger,
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) validate() error {
	errs := validation.Errors{
		"max_attempts": validation.Validate(p.MaxAttempts, validation.Required, validation.Min(1)),
	}

	if p.BaseDelay <= 0 {
		errs["base_delay"] = validation.NewError("validation_invalid_delay", "must be a positive duration")
	}
	if p.MaxDelay < p.BaseDelay {
		errs["max_delay"] = validation.NewError("validation_invalid_delay", "must be at least base_delay")
	}
	if p.ExponentialBase <= 1 {
		errs["exponential_base"] = validation.NewError("validation_invalid_base", "must be greater than 1")
	}

	return errs.Filter()
}

// Execute attempts op up to MaxAttempts times, sleeping between
// attempts without blocking unrelated concurrent work. The first
// success returns immediately. Once exhausted it returns an
// *ExhaustedError wrapping the last failure.
func (p *Policy) Execute(ctx context.Context, op Operation) (any, error) {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		p.logger.Warn("attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.String("error", err.Error()))

		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.Backoff(attempt)):
		}
	}

	return nil, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

// Backoff computes the delay before attempt+2, i.e. attempt 0 yields
// the delay inserted after the first failure. Without jitter the
// result is fully deterministic: min(base * expBase^attempt, max).
// With jitter the delay is scaled by a uniform factor in [0.5, 1.5).
func (p *Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}

	return time.Duration(delay)
}
