package resilience

import (
	"sync"
	"time"
)

// CircuitBreaker implements the classic closed/open/half-open pattern,
// used as an optional guard in front of QueryExecutor.Execute (spec_full
// domain-stack addition). It never coordinates across processes — strictly
// in-process state, consistent with the "no distributed coordination"
// non-goal.
type CircuitBreaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	failureCount     int
	lastFailureTime  time.Time
	state            string
	mutex            sync.RWMutex
}

// NewCircuitBreaker creates a closed breaker that opens after threshold
// consecutive failures and allows a half-open probe after timeout.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: threshold,
		recoveryTimeout:  timeout,
		state:            "closed",
	}
}

// CanExecute reports whether a call should be allowed through.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	if cb.state == "open" {
		return time.Since(cb.lastFailureTime) > cb.recoveryTimeout
	}
	return true
}

// RecordSuccess closes the breaker if it was in recovery.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == "open" && time.Since(cb.lastFailureTime) > cb.recoveryTimeout {
		cb.state = "closed"
	}
	cb.failureCount = 0
}

// RecordFailure counts a failure and opens the breaker at threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.failureThreshold {
		cb.state = "open"
	}
}

// State reports the current breaker state for observability.
func (cb *CircuitBreaker) State() string {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}
