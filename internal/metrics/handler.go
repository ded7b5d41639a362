package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkoutsos/backstop/internal/circuitbreaker"
)

// Snapshot is the JSON document served at the metrics endpoint.
type Snapshot struct {
	Uptime   string                            `json:"uptime"`
	Breakers map[string]circuitbreaker.Metrics `json:"breakers"`
}

// Handler serves a JSON snapshot of every registered breaker.
func (c *Collector) Handler(manager *circuitbreaker.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := Snapshot{
			Uptime:   time.Since(c.metrics.startTime).Round(time.Second).String(),
			Breakers: manager.AllMetrics(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

// PrometheusHandler serves the prometheus scrape endpoint.
func (c *Collector) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(c.metrics.registry, promhttp.HandlerOpts{})
}
