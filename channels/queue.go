// Package channels provides channel-style plumbing that the standard library leaves out.
package channels

import (
	"context"
	"sync"

	"github.com/amp-labs/llmtrace/zero"
	"github.com/eapache/queue"
)

// Queue is an unbounded FIFO with a single end-of-stream mark. Producers never
// block; consumers block in Next until a value arrives, the queue is closed and
// drained, or their context is done.
//
// Queue runs no goroutines of its own, so an abandoned queue is simply garbage
// collected along with whatever it still buffers.
type Queue[A any] struct {
	mu     sync.Mutex
	items  *queue.Queue
	closed bool

	// notify is closed (and replaced) on every Push, and closed for good on Close.
	notify chan struct{}
}

// NewQueue creates an empty, open queue.
func NewQueue[A any]() *Queue[A] {
	return &Queue[A]{
		items:  queue.New(),
		notify: make(chan struct{}),
	}
}

// Push appends v. It reports false, and drops v, if the queue is closed.
func (q *Queue[A]) Push(v A) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items.Add(v)

	close(q.notify)
	q.notify = make(chan struct{})

	return true
}

// Close marks the end of the stream. Values already queued can still be read.
// It reports whether this call was the one that closed the queue.
func (q *Queue[A]) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.closed = true
	close(q.notify)

	return true
}

// Closed reports whether Close has been called.
func (q *Queue[A]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Len returns the number of buffered values.
func (q *Queue[A]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length()
}

// Next removes and returns the oldest value. It returns false once the queue is
// closed and empty, or when ctx is done first.
func (q *Queue[A]) Next(ctx context.Context) (A, bool) {
	for {
		q.mu.Lock()

		if q.items.Length() > 0 {
			v := q.items.Remove().(A) //nolint:forcetypeassert

			q.mu.Unlock()

			return v, true
		}

		if q.closed {
			q.mu.Unlock()

			return zero.Value[A](), false
		}

		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero.Value[A](), false
		}
	}
}
