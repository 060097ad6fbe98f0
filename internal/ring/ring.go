// Package ring provides a fixed-capacity ring buffer with index-based
// eviction. It backs the rolling windows used in the control pipeline
// (observation history, predictor history, performance samples) so the
// hot path never reallocates.
package ring

// Buffer is a fixed-capacity FIFO over a preallocated arena. Appending
// beyond capacity evicts the oldest element.
type Buffer[T any] struct {
	arena []T
	head  int // index of the oldest element
	count int
}

// New returns a Buffer with the given capacity. Capacity must be
// positive; callers validate configuration before construction.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{arena: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full.
func (b *Buffer[T]) Push(v T) {
	tail := (b.head + b.count) % len(b.arena)
	b.arena[tail] = v
	if b.count < len(b.arena) {
		b.count++
	} else {
		b.head = (b.head + 1) % len(b.arena)
	}
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.arena) }

// At returns the i-th element, oldest first. It panics on an
// out-of-range index, matching slice semantics.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.count {
		panic("ring: index out of range")
	}
	return b.arena[(b.head+i)%len(b.arena)]
}

// Latest returns the most recently pushed element and true, or the
// zero value and false when empty.
func (b *Buffer[T]) Latest() (T, bool) {
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.arena[(b.head+b.count-1)%len(b.arena)], true
}

// Snapshot copies the contents into a new slice, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.At(i)
	}
	return out
}

// Reset discards all elements but keeps the arena.
func (b *Buffer[T]) Reset() {
	b.head = 0
	b.count = 0
}
