// Package ringbuf provides a fixed-capacity ring of alerts that overwrites
// the oldest entry when full. The gateway keeps one per symbol so clients
// that subscribe late still receive the recent alert history.
package ringbuf

import (
	"sync"

	"dex-assistant/internal/model"
)

// Ring is a bounded, overwrite-oldest buffer of alerts.
// Safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	buf   []model.Alert
	head  int // next write slot
	count int
}

// New creates a ring with the given capacity. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]model.Alert, capacity)}
}

// Push appends an alert, evicting the oldest entry when the ring is full.
func (r *Ring) Push(a model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = a
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Last returns up to n alerts, oldest first. n <= 0 returns everything held.
func (r *Ring) Last(n int) []model.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]model.Alert, 0, n)
	start := r.head - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Len returns the number of alerts currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
