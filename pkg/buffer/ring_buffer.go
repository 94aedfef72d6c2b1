package buffer

import "sync"

// RingBuffer is a thread-safe fixed-capacity buffer that keeps the most
// recent elements: once full, each Add overwrites the oldest element.
// It is used for sliding windows of recent data, such as the CLI's
// session transcript.
type RingBuffer[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int
	count int
}

// RingN creates a RingBuffer holding at most size elements.
func RingN[T any](size int) *RingBuffer[T] {
	return &RingBuffer[T]{buf: make([]T, size)}
}

// Add appends one element, evicting the oldest when the buffer is full.
func (rb *RingBuffer[T]) Add(t T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.count == len(rb.buf) {
		rb.buf[rb.start] = t
		rb.start = (rb.start + 1) % len(rb.buf)
		return
	}
	rb.buf[(rb.start+rb.count)%len(rb.buf)] = t
	rb.count++
}

// Len returns the number of buffered elements.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Reset discards all buffered elements.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.start = 0
	rb.count = 0
}

// Bytes returns the buffered elements oldest-first, as a copy.
func (rb *RingBuffer[T]) Bytes() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]T, rb.count)
	for i := range rb.count {
		out[i] = rb.buf[(rb.start+i)%len(rb.buf)]
	}
	return out
}
