package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nkoutsos/backstop/internal/circuitbreaker"
)

// Metrics owns the prometheus registry and instruments for the kernel.
type Metrics struct {
	registry *prometheus.Registry

	callsTotal    *prometheus.CounterVec
	tiersSkipped  *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	breakerStates *prometheus.GaugeVec
	tierHealth    *prometheus.GaugeVec
	startTime     time.Time
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backstop",
			Name:      "tier_calls_total",
			Help:      "Tier operations attempted, by tier and outcome.",
		}, []string{"tier", "outcome"}),
		tiersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backstop",
			Name:      "tier_skipped_total",
			Help:      "Tiers skipped because their breaker was open.",
		}, []string{"tier"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "backstop",
			Name:      "tier_call_duration_seconds",
			Help:      "Latency of tier operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),
		breakerStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "backstop",
			Name:      "breaker_state",
			Help:      "Breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"breaker"}),
		tierHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "backstop",
			Name:      "tier_healthy",
			Help:      "Advisory tier health from the monitor: 1 healthy, 0 unhealthy.",
		}, []string{"tier"}),
	}

	m.registry.MustRegister(
		m.callsTotal,
		m.tiersSkipped,
		m.callDuration,
		m.breakerStates,
		m.tierHealth,
	)

	return m
}

// Registry exposes the prometheus registry for the scrape handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) recordCall(tier string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.callsTotal.WithLabelValues(tier, outcome).Inc()
	m.callDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

func (m *Metrics) recordSkip(tier string) {
	m.tiersSkipped.WithLabelValues(tier).Inc()
}

func (m *Metrics) recordState(breaker string, state circuitbreaker.State) {
	m.breakerStates.WithLabelValues(breaker).Set(float64(state))
}

func (m *Metrics) recordHealth(tier string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.tierHealth.WithLabelValues(tier).Set(v)
}
