package workflow

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO of events, one per step runner. Put never
// blocks and never fails: broadcast fan-out must not suspend the sender
// regardless of how far behind a consumer is. There is deliberately no
// capacity bound and no backpressure; a step that never drains its queue
// accumulates memory.
type queue struct {
	mu    sync.Mutex
	items []Event
	ready chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// Put appends an event. Non-blocking.
func (q *queue) Put(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Get removes and returns the oldest event, blocking until one is available
// or ctx is done. Events come out in Put order.
func (q *queue) Get(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of pending events.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
