// Package queue provides the bounded blocking queue that hands file paths from
// the transport listener to the file copier.
//
// Bounded is a classic monitor: one mutex, two condition variables (not-empty
// and not-full) and a one-way finished flag. Put blocks while the queue is
// full, Take blocks while it is empty, and Finish wakes every waiter. After
// Finish, Put always fails while Take keeps draining buffered items in FIFO
// order before reporting empty, so a shutdown never drops work that was
// already accepted.
//
// The finished flag and the ring-buffer bookkeeping are only read or written
// with the mutex held, and every wait re-checks its predicate in a loop.
package queue
