// Package buffer provides a frame-oriented ring queue for realtime media.
package buffer

import (
	"errors"
	"io"
	"sync"
)

// ErrRingClosed is returned by operations on a closed ring.
var ErrRingClosed = errors.New("buffer: ring closed")

// FrameRing is a thread-safe fixed-capacity queue of frames. When full, Add
// overwrites the oldest frame rather than blocking, so a slow consumer never
// stalls the producer (the RTP read loop). Dropped frames are counted.
type FrameRing[T any] struct {
	notify chan struct{}

	mu           sync.Mutex
	buf          []T
	head, tail   int64
	dropped      uint64
	closeWrite   bool
	closeErr     error
	notifyClosed bool
}

// NewFrameRing creates a ring holding at most size frames.
func NewFrameRing[T any](size int) *FrameRing[T] {
	if size <= 0 {
		size = 1
	}
	return &FrameRing[T]{
		notify: make(chan struct{}, 1),
		buf:    make([]T, size),
	}
}

// Add appends a frame. If the ring is full the oldest frame is overwritten
// and the drop counter increments. Add never blocks.
func (r *FrameRing[T]) Add(frame T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return r.closeErr
	}
	if r.closeWrite {
		return ErrRingClosed
	}
	r.buf[r.tail%int64(len(r.buf))] = frame
	r.tail++
	if r.tail-r.head > int64(len(r.buf)) {
		r.head++
		r.dropped++
	}
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Next removes and returns the oldest frame, blocking until one is available
// or the ring is closed. After CloseWrite it drains remaining frames and then
// returns io.EOF.
func (r *FrameRing[T]) Next() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	for r.head == r.tail {
		if r.closeErr != nil {
			return zero, r.closeErr
		}
		if r.closeWrite {
			return zero, io.EOF
		}
		r.mu.Unlock()
		<-r.notify
		r.mu.Lock()
	}
	if r.closeErr != nil {
		return zero, r.closeErr
	}
	frame := r.buf[r.head%int64(len(r.buf))]
	r.head++
	return frame, nil
}

// Len returns the number of buffered frames.
func (r *FrameRing[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.tail - r.head)
}

// Dropped returns the total number of frames discarded due to overflow.
func (r *FrameRing[T]) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// CloseWrite stops accepting frames. Buffered frames remain readable;
// Next returns io.EOF once drained.
func (r *FrameRing[T]) CloseWrite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeWrite {
		return
	}
	r.closeWrite = true
	r.wakeLocked()
}

// CloseWithError closes the ring; all pending and future operations fail
// with err (ErrRingClosed if nil).
func (r *FrameRing[T]) CloseWithError(err error) {
	if err == nil {
		err = ErrRingClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return
	}
	r.closeErr = err
	r.closeWrite = true
	r.wakeLocked()
}

// wakeLocked permanently unblocks waiters by closing the notify channel.
func (r *FrameRing[T]) wakeLocked() {
	if r.notifyClosed {
		return
	}
	r.notifyClosed = true
	select {
	case <-r.notify:
	default:
	}
	close(r.notify)
}
