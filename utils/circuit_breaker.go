package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is cooling down after
// consecutive failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards the realtime transport. Broadcast failures are
// recoverable (the repeat cycle re-sends), so the breaker only needs to
// shed load while the transport is down, not queue requests.
type CircuitBreaker struct {
	name        string
	maxFailures uint32
	cooldown    time.Duration

	mutex    sync.Mutex
	failures uint32
	openedAt time.Time
	open     bool
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
	}
}

// Execute runs req unless the breaker is open. The first request after
// the cooldown window is let through as a probe; its outcome decides
// whether the breaker closes again.
func (cb *CircuitBreaker) Execute(req func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := req()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if !cb.open {
		return true
	}
	if time.Since(cb.openedAt) >= cb.cooldown {
		// Half-open probe.
		cb.openedAt = time.Now()
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.failures = 0
		cb.open = false
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.open = true
		cb.openedAt = time.Now()
	}
}

// State reports whether the breaker is currently rejecting requests.
func (cb *CircuitBreaker) State() string {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.open && time.Since(cb.openedAt) < cb.cooldown {
		return "open"
	}
	if cb.open {
		return "half-open"
	}
	return "closed"
}
