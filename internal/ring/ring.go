// Package ring provides a fixed-capacity circular buffer that overwrites
// its oldest entry when full. It backs the replay history of completed
// utterances.
package ring

// Buffer is a generic ring buffer with overwrite-oldest-on-full semantics.
// Capacity is fixed at construction. Buffer is not safe for concurrent use;
// the owning component serializes access.
type Buffer[T any] struct {
	items []T
	head  int // next write slot
	size  int
}

// New creates a buffer with the given capacity. Capacities below one are
// raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Append inserts an item, overwriting the oldest entry when the buffer is
// full. O(1).
func (b *Buffer[T]) Append(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % len(b.items)
	if b.size < len(b.items) {
		b.size++
	}
}

// Elements returns the contents in insertion order, oldest first. The
// returned slice is a copy.
func (b *Buffer[T]) Elements() []T {
	out := make([]T, 0, b.size)
	start := b.oldest()
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}

// Reversed returns the contents newest first, for backward searches.
func (b *Buffer[T]) Reversed() []T {
	out := make([]T, 0, b.size)
	start := b.oldest()
	for i := b.size - 1; i >= 0; i-- {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}

// Newest returns the most recently appended item. The second return value
// is false when the buffer is empty.
func (b *Buffer[T]) Newest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	idx := (b.head - 1 + len(b.items)) % len(b.items)
	return b.items[idx], true
}

// Len returns the number of items currently held.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// IsEmpty reports whether the buffer holds no items.
func (b *Buffer[T]) IsEmpty() bool { return b.size == 0 }

// IsFull reports whether the next Append will overwrite the oldest entry.
func (b *Buffer[T]) IsFull() bool { return b.size == len(b.items) }

// Clear drops all items. Capacity is unchanged.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}

func (b *Buffer[T]) oldest() int {
	return (b.head - b.size + len(b.items)) % len(b.items)
}
