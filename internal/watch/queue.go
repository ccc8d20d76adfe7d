package watch

import (
	"sync"
	"time"
)

// pending is a queued event with the earliest time it may be handled.
type pending struct {
	Event     Event
	NotBefore time.Time
}

// eventQueue is a thread-safe, unbounded FIFO queue.
//
// Dispatch enqueues from watcher goroutines while the scheduler's Run loop
// dequeues. The signal channel lets the loop wait for work and for context
// cancellation in the same select.
type eventQueue struct {
	mu     sync.Mutex
	items  []pending
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		items:  make([]pending, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue. Returns false once closed.
func (q *eventQueue) Enqueue(p pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, p)

	// Non-blocking; the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *eventQueue) TryDequeue() (pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return pending{}, false
	}
	p := q.items[0]
	q.items[0] = pending{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return p, true
}

// Wait returns a channel that signals when items may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further items and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
