// Package metrics collects kernel events (tier call outcomes, breaker
// state changes, health flips) through a buffered channel and exposes
// them as prometheus instruments plus a JSON snapshot endpoint.
// Emitting an event never blocks a call path.
package metrics
