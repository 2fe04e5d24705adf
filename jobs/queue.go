// Package jobs provides a lock protected FIFO for handing work between
// goroutines without blocking the consumer.
package jobs

import (
	"sync"
	"sync/atomic"
)

// Queue is a FIFO safe for concurrent use. The zero value is ready to use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	size  atomic.Int64
}

// Enqueue appends v to the back of the queue, blocking until the lock is acquired.
func (q *Queue[T]) Enqueue(v T) {
	q.mu.Lock()
	if q.head > 0 && q.head == len(q.items) {
		// Drained; reuse the backing array.
		q.items = q.items[:0]
		q.head = 0
	}
	q.items = append(q.items, v)
	q.size.Add(1)
	q.mu.Unlock()
}

// TryDequeue removes the value at the front of the queue. It returns false
// without blocking if the queue is empty or another goroutine holds the lock.
func (q *Queue[T]) TryDequeue() (v T, ok bool) {
	if !q.mu.TryLock() {
		return v, false
	}
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return v, false
	}
	v = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	q.size.Add(-1)
	return v, true
}

// Dequeue is like TryDequeue but waits for the lock.
func (q *Queue[T]) Dequeue() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return v, false
	}
	v = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	q.size.Add(-1)
	return v, true
}

// Len returns the amount of queued values. The result may be stale by the
// time it is used.
func (q *Queue[T]) Len() int { return int(q.size.Load()) }

// Empty reports whether the queue holds no values. It never blocks.
func (q *Queue[T]) Empty() bool { return q.size.Load() == 0 }
