package session

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO safe for many producers and consumers.
// Pop blocks until an item is available, the queue is closed or ctx is done.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	wake chan struct{}
	done chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push appends v. It reports false if the queue is already closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return true
}

// PushAll appends vs in order as a single step
func (q *Queue[T]) PushAll(vs ...T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, vs...)
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// TryPop returns the head without blocking
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// another waiter may be parked on the token we consumed
		q.signal()
	}
	return v, true
}

// Pop removes and returns the head, waiting for one if the queue is empty.
// Items pushed before Close are still returned; afterwards ErrQueueClosed.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}

		var zero T
		select {
		case <-q.wake:
		case <-q.done:
			if v, ok := q.TryPop(); ok {
				return v, nil
			}
			return zero, ErrQueueClosed
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new items and wakes every waiter
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// CloseAndDrain closes the queue and hands back the items nobody popped
func (q *Queue[T]) CloseAndDrain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Closed() <-chan struct{} {
	return q.done
}
