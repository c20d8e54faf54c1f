package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/TemirB/coursemarket/internal/config"
)

var ErrOpenState = errors.New("circuit breaker is open")

type State uint8

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker opens after cfg.Threshold consecutive failures, rejects calls for
// cfg.OpenTimeout and then lets up to cfg.MaxHalfOpen trial calls through.
// Callers report outcomes with Success and Failure.
type Breaker struct {
	mu          sync.Mutex
	cfg         config.Breaker
	state       State
	failCount   uint32
	openedAt    time.Time
	halfOpenReq uint32
	now         func() time.Time
}

func New(cfg config.Breaker) *Breaker {
	return &Breaker{
		cfg:   cfg,
		state: Closed,
		now:   time.Now,
	}
}

func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrOpenState
		}
		b.state = HalfOpen
		b.halfOpenReq = 1
		return nil
	case HalfOpen:
		if b.halfOpenReq >= b.cfg.MaxHalfOpen {
			return ErrOpenState
		}
		b.halfOpenReq++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failCount = 0
	b.halfOpenReq = 0
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failCount++
		if b.failCount >= b.cfg.Threshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.failCount = 0
	b.halfOpenReq = 0
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
