// pkg/retry/backoff.go
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponentially growing delays with jitter. Attempt
// numbering starts at 0 for the first retry.
type Backoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	maxAttempts  int
	jitter       float64

	// jitterFunc supplies values in [0, 1); tests inject a
	// deterministic function here.
	jitterFunc func() float64
}

// Option configures a Backoff.
type Option func(*Backoff)

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(b *Backoff) {
		b.initialDelay = d
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(b *Backoff) {
		b.maxDelay = d
	}
}

// WithMultiplier sets the growth factor between attempts.
func WithMultiplier(m float64) Option {
	return func(b *Backoff) {
		b.multiplier = m
	}
}

// WithJitter sets the jitter fraction (0.0-1.0).
func WithJitter(j float64) Option {
	return func(b *Backoff) {
		b.jitter = j
	}
}

// WithJitterFunc overrides the randomness source for jitter.
func WithJitterFunc(f func() float64) Option {
	return func(b *Backoff) {
		b.jitterFunc = f
	}
}

// NewBackoff creates a backoff strategy allowing maxAttempts retries.
func NewBackoff(maxAttempts int, opts ...Option) *Backoff {
	b := &Backoff{
		initialDelay: 1 * time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		maxAttempts:  maxAttempts,
		jitter:       0.1,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NextDelay returns the wait before the given retry attempt.
func (b *Backoff) NextDelay(attempt int) time.Duration {
	delayMs := float64(b.initialDelay.Milliseconds()) * math.Pow(b.multiplier, float64(attempt))

	if maxMs := float64(b.maxDelay.Milliseconds()); delayMs > maxMs {
		delayMs = maxMs
	}

	if b.jitter > 0 {
		jitterFunc := b.jitterFunc
		if jitterFunc == nil {
			jitterFunc = rand.Float64
		}
		// Map [0,1) onto [-1,1) and scale by the jitter fraction.
		offset := (jitterFunc() - 0.5) * 2.0
		delayMs *= 1.0 + b.jitter*offset
	}

	return time.Duration(delayMs) * time.Millisecond
}

// MaxAttempts returns the configured retry limit.
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}
