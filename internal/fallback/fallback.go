package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nkoutsos/backstop/internal/circuitbreaker"
	"github.com/nkoutsos/backstop/internal/metrics"
)

// Operation is a single tier's asynchronous access path.
type Operation func(ctx context.Context) (any, error)

// Tier pairs a breaker name with the operation reaching that backend.
// The operation is typically already wrapped in CircuitBreaker.Call
// and/or retry.Policy.Execute; the handler does not care.
type Tier struct {
	Name string
	Op   Operation
}

// ErrAllTiersFailed matches any *AllTiersFailedError via errors.Is.
var ErrAllTiersFailed = errors.New("all tiers failed")

// AllTiersFailedError is returned when every tier was skipped or
// failed. Attempted lists the tiers that were actually invoked, in
// order; Skipped lists the tiers bypassed because their breaker was
// open. It wraps the last tier failure.
type AllTiersFailedError struct {
	Operation string
	Attempted []string
	Skipped   []string
	Err       error
}

func (e *AllTiersFailedError) Error() string {
	msg := fmt.Sprintf("all tiers failed for %q (attempted: %s)",
		e.Operation, strings.Join(e.Attempted, ", "))
	if len(e.Skipped) > 0 {
		msg += fmt.Sprintf(" (skipped: %s)", strings.Join(e.Skipped, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AllTiersFailedError) Unwrap() error { return e.Err }

func (e *AllTiersFailedError) Is(target error) bool { return target == ErrAllTiersFailed }

// Handler sequences tier operations in priority order. It is stateless
// apart from its references: breaker state is a side effect of
// whatever wrapping the tier operations already perform, never of the
// handler itself, so tiers can be added, reordered, or individually
// tuned without touching the sequencing.
type Handler struct {
	manager   *circuitbreaker.Manager
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewHandler creates a fallback handler. The collector may be nil.
func NewHandler(manager *circuitbreaker.Manager, logger *slog.Logger, collector *metrics.Collector) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager:   manager,
		logger:    logger,
		collector: collector,
	}
}

// Execute tries primary, then secondary, then tertiary.
func (h *Handler) Execute(ctx context.Context, operation string, primary, secondary, tertiary Tier) (any, error) {
	return h.ExecuteSequence(ctx, operation, []Tier{primary, secondary, tertiary})
}

// ExecuteSequence attempts the tiers in the given order. A tier whose
// breaker reports open is skipped without invoking its operation. The
// first success returns immediately; once every tier has been skipped
// or has failed, an *AllTiersFailedError is returned.
func (h *Handler) ExecuteSequence(ctx context.Context, operation string, tiers []Tier) (any, error) {
	var (
		attempted []string
		skipped   []string
		lastErr   error
	)

	for _, tier := range tiers {
		if h.breakerOpen(tier.Name) {
			skipped = append(skipped, tier.Name)
			h.logger.Info("tier skipped, breaker open",
				slog.String("operation", operation),
				slog.String("tier", tier.Name))
			h.emit(metrics.Event{
				Type:      metrics.EventTierSkipped,
				Timestamp: time.Now(),
				Tier:      tier.Name,
				Operation: operation,
			})
			continue
		}

		start := time.Now()
		result, err := tier.Op(ctx)
		duration := time.Since(start)

		if err == nil {
			h.emit(metrics.Event{
				Type:      metrics.EventCallSucceeded,
				Timestamp: time.Now(),
				Tier:      tier.Name,
				Operation: operation,
				Duration:  duration,
			})
			return result, nil
		}

		attempted = append(attempted, tier.Name)
		lastErr = err
		h.logger.Warn("tier failed, falling back",
			slog.String("operation", operation),
			slog.String("tier", tier.Name),
			slog.String("error", err.Error()))
		h.emit(metrics.Event{
			Type:      metrics.EventCallFailed,
			Timestamp: time.Now(),
			Tier:      tier.Name,
			Operation: operation,
			Duration:  duration,
		})
	}

	failure := &AllTiersFailedError{
		Operation: operation,
		Attempted: attempted,
		Skipped:   skipped,
		Err:       lastErr,
	}
	h.logger.Error("all tiers exhausted",
		slog.String("operation", operation),
		slog.String("error", failure.Error()))
	return nil, failure
}

// breakerOpen reports whether the tier's breaker is open. A tier with
// no registered breaker is always attempted.
func (h *Handler) breakerOpen(name string) bool {
	cb, err := h.manager.Get(name)
	if err != nil {
		h.logger.Debug("no breaker registered for tier",
			slog.String("tier", name))
		return false
	}
	return cb.State() == circuitbreaker.StateOpen
}

func (h *Handler) emit(event metrics.Event) {
	if h.collector == nil {
		return
	}
	h.collector.Emit(event)
}
