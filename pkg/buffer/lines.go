package buffer

import "sync"

// LineRing keeps the most recent n items, discarding the oldest silently.
// Unlike FrameRing it has no blocking reader; it exists for log panes and
// similar "show the tail" UI, where consumers poll Items.
type LineRing[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int
	n     int
}

// NewLineRing creates a ring keeping at most size items.
func NewLineRing[T any](size int) *LineRing[T] {
	if size <= 0 {
		size = 1
	}
	return &LineRing[T]{buf: make([]T, size)}
}

// Add appends an item, evicting the oldest when full.
func (r *LineRing[T]) Add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = item
		r.n++
		return
	}
	r.buf[r.start] = item
	r.start = (r.start + 1) % len(r.buf)
}

// Items returns the buffered items, oldest first.
func (r *LineRing[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of buffered items.
func (r *LineRing[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
