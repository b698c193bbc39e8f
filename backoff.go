package hostpool

import (
	"math"
	"math/rand"
	"time"
)

// --- Backoff strategies ----

// Backoff computes how long a host stays quarantined after a failure.
// Next returns the cool-down for the current failure and advances the
// internal state; Reset restores the baseline after a success. Implementations
// need not be goroutine safe: the pool serializes all calls under its lock.
type Backoff interface {
	Next() time.Duration
	Reset()
}

// BackoffKind selects one of the built-in strategies at construction time.
type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffExponential BackoffKind = "exponential"
)

// A quarantined host is never re-admitted immediately, whatever the
// configured delays say.
const minBackoffDelay = time.Millisecond

// jitter scales a computed delay uniformly within [0.8, 1.2] so that hosts
// which failed at the same instant do not all come back at the same instant.
const (
	jitterLow  = 0.8
	jitterSpan = 0.4
)

type constantBackoff struct {
	delay time.Duration
}

// NewConstantBackoff returns a strategy whose cool-down is always d.
func NewConstantBackoff(d time.Duration) Backoff {
	if d < minBackoffDelay {
		d = minBackoffDelay
	}
	return &constantBackoff{delay: d}
}

func (b *constantBackoff) Next() time.Duration { return b.delay }

func (b *constantBackoff) Reset() {}

type exponentialBackoff struct {
	base       time.Duration
	max        time.Duration
	multiplier float64
	jitter     bool
	attempt    int
	rng        *rand.Rand
}

// NewExponentialBackoff returns a strategy whose cool-down starts at base and
// grows by multiplier on every consecutive failure, capped at max. With
// jitter enabled the computed delay is scaled within a fixed band around the
// nominal value.
func NewExponentialBackoff(base, max time.Duration, multiplier float64, jitter bool) Backoff {
	if base < minBackoffDelay {
		base = minBackoffDelay
	}
	if max < base {
		max = base
	}
	if multiplier < 1 {
		multiplier = 2
	}
	return &exponentialBackoff{
		base:       base,
		max:        max,
		multiplier: multiplier,
		jitter:     jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *exponentialBackoff) Next() time.Duration {
	nominal := float64(b.base) * math.Pow(b.multiplier, float64(b.attempt))
	if nominal >= float64(b.max) {
		// Saturated: stop advancing attempt so an unbounded failure streak
		// cannot overflow the exponent.
		nominal = float64(b.max)
	} else {
		b.attempt++
	}

	d := nominal
	if b.jitter {
		d *= jitterLow + jitterSpan*b.rng.Float64()
	}
	if d > float64(b.max) {
		d = float64(b.max)
	}
	if d < float64(minBackoffDelay) {
		d = float64(minBackoffDelay)
	}
	return time.Duration(d)
}

func (b *exponentialBackoff) Reset() {
	b.attempt = 0
}
