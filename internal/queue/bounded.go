package queue

import (
	"sync"

	"pipecopy/internal/failure"
)

// Bounded is a fixed-capacity FIFO with blocking Put and Take and a one-way
// Finish signal. It is safe for any number of producers and consumers.
//
// All fields are guarded by mu. Finish never discards buffered items: Take
// keeps returning them until the queue is drained.
type Bounded[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    []T
	head     int
	size     int
	finished bool
}

// New returns an empty queue holding at most capacity items.
func New[T any](capacity int) (*Bounded[T], error) {
	if capacity < 1 {
		return nil, failure.Configuration("queue.capacity", "must be at least 1")
	}
	q := &Bounded[T]{items: make([]T, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Put appends item at the tail, waiting while the queue is full. It returns
// false without inserting once the queue has been finished, including when
// Finish happens while Put is waiting.
func (q *Bounded[T]) Put(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == len(q.items) && !q.finished {
		q.notFull.Wait()
	}
	if q.finished {
		return false
	}

	tail := (q.head + q.size) % len(q.items)
	q.items[tail] = item
	q.size++
	q.notEmpty.Signal()
	return true
}

// Take removes and returns the head item, waiting while the queue is empty.
// Items buffered before Finish are still returned; ok is false only when the
// queue is both empty and finished.
func (q *Bounded[T]) Take() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.finished {
		q.notEmpty.Wait()
	}
	if q.size == 0 {
		return item, false
	}

	item = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	q.notFull.Signal()
	return item, true
}

// Finish marks the queue finished and wakes every waiter so each blocked Put
// and Take re-evaluates. Calling it more than once is harmless.
func (q *Bounded[T]) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.finished = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len reports the number of buffered items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap reports the fixed capacity.
func (q *Bounded[T]) Cap() int {
	return len(q.items)
}

// Finished reports whether Finish has been called.
func (q *Bounded[T]) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.finished
}
