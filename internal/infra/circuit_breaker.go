package infra

import (
	"errors"
	"sync"
	"time"
)

// CBState is the breaker position. Closed lets calls through, Open fast-fails
// them, HalfOpen lets probes through while recovery is being confirmed.
type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute while the breaker is fast-failing.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig tunes one breaker instance.
type CircuitBreakerConfig struct {
	// TripAfter consecutive failures move Closed → Open.
	TripAfter int
	// Cooldown is how long Open lasts before the first probe is let through.
	Cooldown time.Duration
	// CloseAfter consecutive probe successes move HalfOpen → Closed.
	CloseAfter int
}

// DefaultCBConfig fits the outbound HTTP collaborators: trip fast enough that
// a dead gateway does not stall every request, recover within a minute.
func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{TripAfter: 5, Cooldown: 60 * time.Second, CloseAfter: 2}
}

// CircuitBreaker guards calls to a single external collaborator. One instance
// per collaborator; safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    CBState
	streak   int // consecutive failures (closed) or successes (half-open)
	openedAt time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig()
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = def.TripAfter
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.CloseAfter <= 0 {
		cfg.CloseAfter = def.CloseAfter
	}
	return &CircuitBreaker{cfg: cfg, state: CBClosed}
}

// State reports the breaker position, advancing Open → HalfOpen once the
// cooldown has elapsed.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CBState {
	if cb.state == CBOpen && time.Since(cb.openedAt) >= cb.cfg.Cooldown {
		cb.state = CBHalfOpen
		cb.streak = 0
	}
	return cb.state
}

// Execute runs fn unless the breaker is open, and feeds the outcome back into
// the state machine. fn's error is returned unchanged so callers can still
// inspect it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.State() == CBOpen {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	switch cb.state {
	case CBClosed:
		cb.streak++
		if cb.streak >= cb.cfg.TripAfter {
			cb.trip()
		}
	case CBHalfOpen:
		// Probe failed, back to cooling down.
		cb.trip()
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case CBClosed:
		cb.streak = 0
	case CBHalfOpen:
		cb.streak++
		if cb.streak >= cb.cfg.CloseAfter {
			cb.state = CBClosed
			cb.streak = 0
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = CBOpen
	cb.streak = 0
	cb.openedAt = time.Now()
}
