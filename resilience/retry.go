// Package resilience provides the backoff and circuit-breaker primitives
// used by the query executor's rate-limit handling and, as an optional
// decorator, around the executor itself.
package resilience

import (
	"math"
	"time"
)

// BackoffDelay computes the delay before the given retry attempt (1-based)
// under exponential backoff with the given base and cap, doubling per
// attempt — the exact policy the QueryExecutor applies to rate-limit
// retries (spec.md §4.8: base 5000ms, cap 60000ms).
func BackoffDelay(attempt int, base, cap_ time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if delay > float64(cap_) {
		return cap_
	}
	return time.Duration(delay)
}
