package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected without reaching the upstream.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerState is the state of a Breaker.
type BreakerState int

// Breaker states.
const (
	StateClosed BreakerState = iota
	StateOpen
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

// Breaker stops calling an upstream after Threshold consecutive transient
// failures, and lets a single probe through once Cooldown has elapsed.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a Breaker. Non-positive values fall back to 5 failures / 30s.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// State returns the current state, reporting half-open once the cooldown has passed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.setState(StateHalfOpen)
		return nil
	}
	return eris.Wrap(ErrCircuitOpen, b.name)
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Only upstream health counts; a 404 or a bad request is a healthy upstream.
	if err == nil || !IsTransient(err) {
		b.failures = 0
		if b.state != StateClosed {
			b.setState(StateClosed)
		}
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		if b.state != StateOpen {
			b.setState(StateOpen)
		}
	}
}

func (b *Breaker) setState(to BreakerState) {
	zap.L().Info("circuit breaker state change",
		zap.String("upstream", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}

// Guard combines a Breaker with a retry Policy for one upstream service.
type Guard struct {
	Breaker *Breaker
	Policy  Policy
}

// NewGuard creates a Guard for the named upstream.
func NewGuard(name string, p Policy, threshold int, cooldown time.Duration) *Guard {
	return &Guard{Breaker: NewBreaker(name, threshold, cooldown), Policy: p}
}

// Call runs fn with retries, each attempt passing through the breaker. A nil
// Guard runs fn once.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	p := g.Policy.withDefaults()
	shouldRetry := p.ShouldRetry
	p.ShouldRetry = func(err error) bool {
		// An open circuit will not close during our backoff window.
		if eris.Is(err, ErrCircuitOpen) {
			return false
		}
		return shouldRetry(err)
	}
	return Retry(ctx, p, op, func(ctx context.Context) (T, error) {
		var zero T
		if err := g.Breaker.allow(); err != nil {
			return zero, err
		}
		val, err := fn(ctx)
		g.Breaker.record(err)
		return val, err
	})
}
