// Package health runs lightweight liveness probes against each backend
// tier on a fixed interval and caches the results for dashboards. The
// monitor is purely observational: fallback routing never consults it.
package health
