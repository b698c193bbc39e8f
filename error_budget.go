package hostpool

import (
	"time"
)

// ringBuffer records the timestamps of the most recent request outcomes for
// one host, so the pool can decide whether a failure exceeds the configured
// budget for the failure window instead of quarantining on the first error.
type ringBuffer struct {
	size  int
	index int
	items []time.Time
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		size:  size,
		items: make([]time.Time, size),
	}
}

func (r *ringBuffer) insert(ts time.Time) {
	r.index = (r.index + 1) % r.size
	r.items[r.index] = ts
}

// since counts recorded outcomes newer than t. Zero-valued slots never match,
// so a fresh buffer counts as empty. Callers must hold the pool lock.
func (r *ringBuffer) since(t time.Time) int {
	if r == nil {
		return 0
	}
	n := 0
	for i := 0; i < r.size; i++ {
		if r.items[i].After(t) {
			n++
		}
	}
	return n
}
