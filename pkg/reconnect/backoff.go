// Package reconnect provides the exponential-backoff-with-jitter strategy
// shared by every collector's connection-retry loop.
package reconnect

import (
	"math"
	"math/rand"
	"time"
)

// Config controls the backoff schedule.
type Config struct {
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	Jitter        float64       `json:"jitter"` // fraction of the delay to randomize, 0..1
}

// DefaultConfig returns sensible reconnect defaults.
func DefaultConfig() Config {
	return Config{
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
		Jitter:        0.2,
	}
}

// Strategy computes successive reconnect delays for a single connection
// attempt sequence. It is not safe for concurrent use; each collector
// owns its own Strategy instance.
type Strategy struct {
	config  Config
	attempt int
	rand    *rand.Rand
}

// New creates a Strategy with config, defaulting any unset fields.
func New(config Config) *Strategy {
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultConfig().InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultConfig().MaxDelay
	}
	if config.BackoffFactor <= 1.0 {
		config.BackoffFactor = DefaultConfig().BackoffFactor
	}
	if config.Jitter < 0 {
		config.Jitter = 0
	}
	if config.Jitter > 1 {
		config.Jitter = 1
	}
	return &Strategy{
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay to wait before the next reconnect attempt and
// advances the internal attempt counter. The first call returns a delay
// around InitialDelay; subsequent calls grow by BackoffFactor up to
// MaxDelay, each with +/-Jitter fractional randomization.
func (s *Strategy) Next() time.Duration {
	base := float64(s.config.InitialDelay) * math.Pow(s.config.BackoffFactor, float64(s.attempt))
	if base > float64(s.config.MaxDelay) {
		base = float64(s.config.MaxDelay)
	}
	s.attempt++

	if s.config.Jitter == 0 {
		return time.Duration(base)
	}
	spread := base * s.config.Jitter
	delta := (s.rand.Float64()*2 - 1) * spread
	delay := base + delta
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset zeroes the attempt counter, e.g. after a successful reconnect.
func (s *Strategy) Reset() {
	s.attempt = 0
}

// Attempt returns the number of Next() calls since creation or last Reset.
func (s *Strategy) Attempt() int {
	return s.attempt
}
