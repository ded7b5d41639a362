package main

import (
	"encoding/json"
	"net/http"

	"github.com/nkoutsos/backstop/internal/circuitbreaker"
	"github.com/nkoutsos/backstop/internal/health"
	"github.com/nkoutsos/backstop/internal/metrics"
)

func setupRouter(manager *circuitbreaker.Manager, monitor *health.Monitor, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/metrics", collector.Handler(manager))
	mux.Handle("/prometheus", collector.PrometheusHandler())
	mux.HandleFunc("/health", healthHandler(monitor))

	return mux
}

func healthHandler(monitor *health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := monitor.Status()

		w.Header().Set("Content-Type", "application/json")
		if !status.AllHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
