package diagnostics

import "sync"

// RingBuffer is a fixed-capacity circular buffer. Once full, each write
// overwrites the oldest entry. Safe for concurrent use.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
	head     int // index where next write goes
	total    int64
}

// NewRingBuffer creates a ring buffer holding at most capacity entries.
// A capacity below one is treated as one.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// WriteOne appends an entry, evicting the oldest when full
func (rb *RingBuffer[T]) WriteOne(entry T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(rb.entries) < rb.capacity {
		rb.entries = append(rb.entries, entry)
	} else {
		rb.entries[rb.head] = entry
	}
	rb.head = (rb.head + 1) % rb.capacity
	rb.total++
}

// ReadAll returns a copy of the entries, oldest first
func (rb *RingBuffer[T]) ReadAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.entries) == 0 {
		return nil
	}

	result := make([]T, len(rb.entries))
	if len(rb.entries) < rb.capacity {
		copy(result, rb.entries)
	} else {
		// Full: head points at the oldest entry
		n := copy(result, rb.entries[rb.head:])
		copy(result[n:], rb.entries[:rb.head])
	}
	return result
}

// Len returns the number of entries currently held
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.entries)
}

// Cap returns the buffer capacity
func (rb *RingBuffer[T]) Cap() int {
	return rb.capacity
}

// TotalWritten returns how many entries were ever written, evicted ones included
func (rb *RingBuffer[T]) TotalWritten() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total
}

// Clear drops every entry
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries = rb.entries[:0]
	rb.head = 0
}
