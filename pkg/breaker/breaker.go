// Package breaker implements a per-source circuit breaker so a failing
// upstream (broker, HTTP API, feed) degrades a collector instead of
// blocking the whole ingest loop.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config controls trip/reset behavior.
type Config struct {
	FailureThreshold int           `json:"failure_threshold"`
	ResetTimeout     time.Duration `json:"reset_timeout"`
	HalfOpenMax      int           `json:"half_open_max"`
}

// DefaultConfig returns sensible breaker defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMax:      1,
	}
}

// Stats is a point-in-time snapshot of a breaker's counters.
type Stats struct {
	State               State     `json:"state"`
	TotalSuccesses      int64     `json:"total_successes"`
	TotalFailures       int64     `json:"total_failures"`
	TotalRejected       int64     `json:"total_rejected"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time,omitempty"`
	LastStateChange     time.Time `json:"last_state_change_time"`
}

// ErrOpen is returned by Allow when the breaker is rejecting calls.
var ErrOpen = fmt.Errorf("circuit breaker open")

// Breaker is a single named circuit breaker. Zero value is not usable;
// construct with New.
type Breaker struct {
	mu sync.Mutex

	name   string
	config Config

	state               State
	consecutiveFailures int
	halfOpenInFlight    int

	totalSuccesses int64
	totalFailures  int64
	totalRejected  int64

	lastFailureTime time.Time
	lastStateChange time.Time

	now func() time.Time
}

// New creates a Breaker for name with the given config, starting Closed.
func New(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultConfig().ResetTimeout
	}
	if config.HalfOpenMax <= 0 {
		config.HalfOpenMax = DefaultConfig().HalfOpenMax
	}
	return &Breaker{
		name:            name,
		config:          config,
		state:           Closed,
		lastStateChange: time.Now(),
		now:             time.Now,
	}
}

// Name returns the breaker's identifier.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call should proceed. When Open and the reset
// timeout has elapsed, it transitions to HalfOpen and allows a bounded
// number of trial calls through; otherwise it rejects.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case Closed:
		return true
	case Open:
		if now.Sub(b.lastStateChange) >= b.config.ResetTimeout {
			b.setState(HalfOpen, now)
			b.halfOpenInFlight = 1
			return true
		}
		b.totalRejected++
		return false
	case HalfOpen:
		if b.halfOpenInFlight < b.config.HalfOpenMax {
			b.halfOpenInFlight++
			return true
		}
		b.totalRejected++
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful call. In HalfOpen, a success closes
// the breaker and resets counters.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++
	b.consecutiveFailures = 0

	if b.state == HalfOpen {
		b.setState(Closed, b.now())
		b.halfOpenInFlight = 0
	}
}

// RecordFailure reports a failed call. In Closed, enough consecutive
// failures trips the breaker Open. In HalfOpen, any failure re-opens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.totalFailures++
	b.lastFailureTime = now
	b.consecutiveFailures++

	switch b.state {
	case Closed:
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.setState(Open, now)
		}
	case HalfOpen:
		b.setState(Open, now)
		b.halfOpenInFlight = 0
	}
}

// setState transitions state and stamps the change time. Caller must hold mu.
func (b *Breaker) setState(s State, at time.Time) {
	if b.state == s {
		return
	}
	b.state = s
	b.lastStateChange = at
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:               b.state,
		TotalSuccesses:      b.totalSuccesses,
		TotalFailures:       b.totalFailures,
		TotalRejected:       b.totalRejected,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureTime:     b.lastFailureTime,
		LastStateChange:     b.lastStateChange,
	}
}

// Reset forces the breaker back to Closed with counters cleared. Intended
// for admin/debug use, not the normal trip/recover path.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.halfOpenInFlight = 0
	b.lastStateChange = b.now()
}

// Registry tracks one Breaker per name, creating it lazily with config on
// first use.
type Registry struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*Breaker
}

// NewRegistry creates a Registry that lazily constructs breakers with config.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the named breaker, creating it if this is the first call for
// that name.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.config)
	r.breakers[name] = b
	return b
}

// All returns a snapshot of every breaker's stats, keyed by name.
func (r *Registry) All() map[string]Stats {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	breakers := make([]*Breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]Stats, len(names))
	for i, name := range names {
		out[name] = breakers[i].Stats()
	}
	return out
}
