package hostpool

import (
	"time"
)

// --- hostEntry ----

// hostEntry is one configured endpoint. The URL is its identity and is
// immutable after construction; everything else is owned by the pool and
// only mutated under the pool lock.
type hostEntry struct {
	url     string
	backoff Backoff

	// disabled and due track quarantine membership. A host is in exactly one
	// of the pool's available/disabled collections; disabled mirrors which.
	disabled bool
	due      time.Time

	// failure window bookkeeping, only allocated when an error budget is
	// configured.
	failures  *ringBuffer
	successes *ringBuffer
}

// fail advances the backoff and returns the cool-down the pool should
// quarantine this host for. It does not move the host between collections;
// that transition belongs to the pool.
func (h *hostEntry) fail() time.Duration {
	return h.backoff.Next()
}

// success resets the backoff so one old failure does not linger as elevated
// risk once the host has proven healthy again.
func (h *hostEntry) success() {
	h.backoff.Reset()
}

// reclaimable reports whether a quarantined host's cool-down has elapsed.
func (h *hostEntry) reclaimable(now time.Time) bool {
	return h.disabled && !now.Before(h.due)
}
