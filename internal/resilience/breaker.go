package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// StateClosed lets every call through.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a single trial through.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling through when the breaker is open or a
// half-open trial is already in flight.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerSettings configures a Breaker.
type BreakerSettings struct {
	// Name identifies the breaker in logs.
	Name string
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before admitting a trial call.
	Cooldown time.Duration
	// Trips reports whether a non-nil error counts as a failure. Errors that
	// do not trip count as successes. Defaults to every error. Cancelled
	// calls are never counted either way.
	Trips func(error) bool
}

// NewBreakerSettings builds settings from config values; non-positive values
// keep the defaults (5 failures, 30s cooldown).
func NewBreakerSettings(name string, threshold, cooldownSecs int) BreakerSettings {
	s := BreakerSettings{Name: name, Threshold: 5, Cooldown: 30 * time.Second}
	if threshold > 0 {
		s.Threshold = threshold
	}
	if cooldownSecs > 0 {
		s.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return s
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	settings BreakerSettings
	now      func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trialing  bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(s BreakerSettings) *Breaker {
	if s.Threshold <= 0 {
		s.Threshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Trips == nil {
		s.Trips = func(error) bool { return true }
	}
	return &Breaker{settings: s, now: time.Now}
}

// Guard runs fn through b.
func Guard[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

// State reports the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooledDown() {
		return StateHalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) cooledDown() bool {
	return b.now().Sub(b.openedAt) >= b.settings.Cooldown
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if !b.cooledDown() {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.trialing = true
		return nil
	case StateHalfOpen:
		if b.trialing {
			return ErrOpen
		}
		b.trialing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialing = false
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	if err == nil || !b.settings.Trips(err) {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.setState(StateClosed)
		}
		return
	}

	b.failures++
	switch b.state {
	case StateHalfOpen:
		b.openedAt = b.now()
		b.setState(StateOpen)
	case StateClosed:
		if b.failures >= b.settings.Threshold {
			b.openedAt = b.now()
			b.setState(StateOpen)
		}
	}
}

func (b *Breaker) setState(to BreakerState) {
	if b.state == to {
		return
	}
	zap.L().Info("resilience: circuit state change",
		zap.String("breaker", b.settings.Name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
		zap.Int("failures", b.failures),
	)
	b.state = to
}
