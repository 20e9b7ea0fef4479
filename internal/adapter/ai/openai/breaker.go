package openai

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
)

// BreakerState is the state of a model's circuit.
type BreakerState int

const (
	// BreakerClosed lets every call through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the recovery timeout has passed.
	BreakerOpen
	// BreakerHalfOpen lets a single probe through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker opens after a run of consecutive upstream failures so a failing
// provider is not hammered by every new analysis.
type Breaker struct {
	mu               sync.Mutex
	model            string
	failureThreshold int
	recoveryTimeout  time.Duration
	state            BreakerState
	failures         int
	openedAt         time.Time
	probing          bool
	now              func() time.Time
}

// NewBreaker creates a closed breaker for model.
func NewBreaker(model string, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return &Breaker{
		model:            model,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may be issued now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.recoveryTimeout {
			return false
		}
		b.setState(BreakerHalfOpen)
		b.probing = true
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != BreakerClosed {
		slog.Info("circuit breaker closed", slog.String("model", b.model))
		b.setState(BreakerClosed)
	}
}

// RecordFailure counts an upstream failure; a failed probe reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	if b.state == BreakerHalfOpen || b.failures >= b.failureThreshold {
		if b.state != BreakerOpen {
			slog.Warn("circuit breaker opened",
				slog.String("model", b.model),
				slog.Int("failure_count", b.failures),
				slog.Int("threshold", b.failureThreshold))
		}
		b.openedAt = b.now()
		b.setState(BreakerOpen)
	}
}

// release gives back a half-open probe slot without judging the provider.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(s BreakerState) {
	b.state = s
	observability.RecordCircuitBreakerStatus(b.model, int(s))
}

// Breakers hands out one breaker per model.
type Breakers struct {
	mu               sync.Mutex
	byModel          map[string]*Breaker
	failureThreshold int
	recoveryTimeout  time.Duration
}

// NewBreakers creates an empty set sharing one configuration.
func NewBreakers(failureThreshold int, recoveryTimeout time.Duration) *Breakers {
	return &Breakers{
		byModel:          make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// For returns or creates the breaker for model.
func (m *Breakers) For(model string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.byModel[model]; ok {
		return b
	}
	b := NewBreaker(model, m.failureThreshold, m.recoveryTimeout)
	m.byModel[model] = b
	return b
}

// Open lists models whose circuit is currently open.
func (m *Breakers) Open() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for model, b := range m.byModel {
		if b.State() == BreakerOpen {
			out = append(out, model)
		}
	}
	return out
}
