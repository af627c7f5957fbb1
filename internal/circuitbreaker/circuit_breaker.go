// Package circuitbreaker stops calls to a failing dependency for a cool-down
// period and then lets a single probe through.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cleanward/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means calls flow normally
	StateClosed State = "closed"
	// StateOpen means calls are rejected until the cool-down elapses
	StateOpen State = "open"
	// StateHalfOpen means one probe call is in flight
	StateHalfOpen State = "half_open"
)

var (
	// ErrCircuitOpen is returned while the breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned when a half-open probe is already running
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// Config configures a circuit breaker
type Config struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures int
	// ResetTimeout is how long the breaker stays open before probing
	ResetTimeout time.Duration
	// IsFailure decides which errors count against the breaker. Defaults to
	// every non-nil error except context cancellation.
	IsFailure func(error) bool
}

// Stats is a snapshot of the breaker
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	TotalFailures    int       `json:"totalFailures"`
	TotalSuccesses   int       `json:"totalSuccesses"`
	Rejected         int       `json:"rejected"`
	OpenedAt         time.Time `json:"openedAt,omitempty"`
}

// CircuitBreaker guards calls to one dependency
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu               sync.Mutex
	state            State
	consecutiveFails int
	totalFailures    int
	totalSuccesses   int
	rejected         int
	openedAt         time.Time
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &CircuitBreaker{
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

// Execute runs fn unless the breaker is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		return nil
	case StateHalfOpen:
		cb.rejected++
		return ErrProbeInFlight
	default:
		return nil
	}
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cfg.IsFailure(err) {
		cb.totalSuccesses++
		cb.consecutiveFails = 0
		if cb.state != StateClosed {
			cb.transition(StateClosed)
		}
		return
	}

	cb.totalFailures++
	cb.consecutiveFails++

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateOpen)
	case StateClosed:
		if cb.consecutiveFails >= cb.cfg.MaxFailures {
			cb.transition(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.now()
	}

	entry := logging.WithFields(map[string]interface{}{
		"circuit_breaker":   cb.cfg.Name,
		"from":              from,
		"to":                to,
		"consecutive_fails": cb.consecutiveFails,
	})
	if to == StateOpen {
		entry.Warn("circuit breaker opened")
	} else {
		entry.Info("circuit breaker state changed")
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:             cb.cfg.Name,
		State:            cb.state,
		ConsecutiveFails: cb.consecutiveFails,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		Rejected:         cb.rejected,
		OpenedAt:         cb.openedAt,
	}
}

// Reset closes the breaker and clears the failure streak
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}
