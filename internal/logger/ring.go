package logger

import "sync"

// ring is a fixed-capacity FIFO that overwrites its oldest entry when full.
type ring[T any] struct {
	mu    sync.RWMutex
	buf   []T
	next  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// snapshot returns the stored entries oldest first.
func (r *ring[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
