// Package queue provides a FIFO queue used by the protocol engine to hold
// pending command tasks between ticks.
package queue

// FIFO is a slice-backed first-in first-out queue.
//
// It is not goroutine-safe; the protocol loop is the only mutator.
type FIFO[T any] struct {
	items []T
}

// New creates a FIFO with the given preallocated capacity.
func New[T any](prealloc int) *FIFO[T] {
	return &FIFO[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *FIFO[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
// The second return value is false if the queue is empty.
func (q *FIFO[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero // release the reference
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *FIFO[T]) Peek() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	return q.items[0], true
}

// Reset resets the queue to an empty state, reusing the underlying array.
func (q *FIFO[T]) Reset() {
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.items = q.items[:0]
}

// IsEmpty returns true if the queue is empty.
func (q *FIFO[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Length returns the number of items in the queue.
func (q *FIFO[T]) Length() int {
	return len(q.items)
}
