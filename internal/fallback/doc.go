// Package fallback sequences interchangeable backend tiers in priority
// order, skipping tiers whose circuit breaker is open and escalating
// only when every tier has been skipped or has failed.
package fallback
