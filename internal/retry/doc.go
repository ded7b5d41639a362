// Package retry provides a stateless retry executor with exponential
// backoff and optional jitter. A Policy is validated at construction
// and immutable afterwards; it can wrap any tier operation without the
// fallback layer knowing about it.
package retry
