package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkoutsos/backstop/internal/circuitbreaker"
)

type EventType string

const (
	EventCallSucceeded EventType = "call_succeeded"
	EventCallFailed    EventType = "call_failed"
	EventTierSkipped   EventType = "tier_skipped"
	EventStateChanged  EventType = "state_changed"
	EventHealthChanged EventType = "health_changed"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Tier      string
	Breaker   string
	Operation string
	State     circuitbreaker.State
	Healthy   bool
	Duration  time.Duration
}

// Collector consumes kernel events from a buffered channel and updates
// the prometheus instruments. Emitters never block: the channel is
// drained by a single background goroutine, and a full buffer drops
// the event rather than stalling a call path.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit enqueues an event, dropping it if the buffer is full.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

// Metrics returns the instrument set backing this collector.
func (c *Collector) Metrics() *Metrics {
	return c.metrics
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventCallSucceeded:
		c.metrics.recordCall(event.Tier, true, event.Duration)

	case EventCallFailed:
		c.metrics.recordCall(event.Tier, false, event.Duration)

	case EventTierSkipped:
		c.metrics.recordSkip(event.Tier)

	case EventStateChanged:
		c.metrics.recordState(event.Breaker, event.State)

	case EventHealthChanged:
		c.metrics.recordHealth(event.Tier, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}
