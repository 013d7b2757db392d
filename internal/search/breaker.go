package search

import (
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("search index unavailable")

// CircuitBreaker stops calling the search engine after repeated failures
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	consecutiveFailures int
	isOpen              bool
	lastFailureTime     time.Time

	mutex sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// RecordSuccess closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.consecutiveFailures = 0
	cb.isOpen = false
}

// RecordFailure counts a failed call and opens the breaker at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.now()
	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.isOpen = true
	}
}

// CanProceed reports whether a call may be made. After resetTimeout an open
// breaker lets one trial call through (half-open).
func (cb *CircuitBreaker) CanProceed() bool {
	if cb == nil {
		return true
	}
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.isOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailureTime) > cb.resetTimeout {
		// half-open: one more failure reopens it
		cb.isOpen = false
		cb.consecutiveFailures = cb.failureThreshold - 1
		return true
	}
	return false
}

// IsOpen returns the breaker state
func (cb *CircuitBreaker) IsOpen() bool {
	if cb == nil {
		return false
	}
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.isOpen
}
