package engine

import (
	"context"
	"fmt"
	"sync"
)

// Queue is the shared ordered event channel between producers and the
// dispatcher. It preserves arrival order but retains only the latest pending
// event per coalescing key: when the dispatcher falls behind, stale
// intermediate samples for the same container or host are superseded in
// place instead of queueing unboundedly. Events with an empty key are never
// coalesced.
type Queue struct {
	mu     sync.Mutex
	order  []string
	slots  map[string]Event
	seq    uint64
	closed bool

	// notify wakes a blocked consumer; capacity 1 because one wakeup is
	// enough to drain everything pending.
	notify chan struct{}
}

// NewQueue creates an empty event queue.
func NewQueue() *Queue {
	return &Queue{
		slots:  make(map[string]Event),
		notify: make(chan struct{}, 1),
	}
}

// Publish enqueues an event. If an event with the same coalescing key is
// already pending, the new event replaces it in place, keeping the original
// queue position. Publishing to a closed queue is a no-op so producers
// racing shutdown never panic.
func (q *Queue) Publish(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	key := ev.coalesceKey()
	if key == "" {
		q.seq++
		key = fmt.Sprintf("seq/%d", q.seq)
		q.order = append(q.order, key)
	} else if _, pending := q.slots[key]; !pending {
		q.order = append(q.order, key)
	}
	q.slots[key] = ev
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Poll returns the oldest pending event without blocking.
func (q *Queue) Poll() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return nil, false
	}
	key := q.order[0]
	q.order = q.order[1:]
	ev := q.slots[key]
	delete(q.slots, key)
	return ev, true
}

// Next blocks until an event is available or the context is cancelled.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	for {
		if ev, ok := q.Poll(); ok {
			return ev, nil
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, context.Canceled
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Close stops the queue. Pending events remain pollable; blocked consumers
// wake and receive context.Canceled once drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}
