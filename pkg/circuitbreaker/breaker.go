package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	ErrTooManyProbes = errors.New("too many probes in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	Cooldown         time.Duration
	MaxProbes        uint32
	Logger           *zap.Logger
}

// Breaker trips to open after FailureThreshold consecutive failures,
// rejects calls for Cooldown, then admits up to MaxProbes concurrent
// probe calls; SuccessThreshold consecutive probe successes close it,
// any probe failure reopens it.
type Breaker struct {
	name             string
	failureThreshold uint32
	successThreshold uint32
	cooldown         time.Duration
	maxProbes        uint32
	logger           *zap.Logger

	mu              sync.Mutex
	state           State
	consecFailures  uint32
	consecSuccesses uint32
	probes          uint32
	openedAt        time.Time
}

func New(name string, cfg Config) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		cooldown:         cfg.Cooldown,
		maxProbes:        cfg.MaxProbes,
		logger:           cfg.Logger,
	}
	if b.failureThreshold == 0 {
		b.failureThreshold = 5
	}
	if b.successThreshold == 0 {
		b.successThreshold = 2
	}
	if b.cooldown == 0 {
		b.cooldown = 30 * time.Second
	}
	if b.maxProbes == 0 {
		b.maxProbes = 1
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Execute runs fn under the breaker. A context error from fn counts as a
// failure like any other; ErrCircuitOpen is returned without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.admit(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(false)
			panic(r)
		}
	}()

	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.probes = 1
		return nil
	default: // StateHalfOpen
		if b.probes >= b.maxProbes {
			return ErrTooManyProbes
		}
		b.probes++
		return nil
	}
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}

	if success {
		b.consecFailures = 0
		b.consecSuccesses++
		if b.state == StateHalfOpen && b.consecSuccesses >= b.successThreshold {
			b.transition(StateClosed)
		}
		return
	}

	b.consecSuccesses = 0
	b.consecFailures++
	switch b.state {
	case StateClosed:
		if b.consecFailures >= b.failureThreshold {
			b.openedAt = time.Now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.openedAt = time.Now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.consecFailures = 0
	b.consecSuccesses = 0

	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}
