package hub

import (
	"sync"

	"github.com/lborres/shopfront/core"
)

// eventQueue is an unbounded FIFO between the reader and the Events
// channel. The reader never blocks on a slow consumer, so completions keep
// flowing while the consumer waits inside Invoke.
type eventQueue struct {
	mu     sync.Mutex
	items  []core.PushEvent
	closed bool
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev core.PushEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) drain() ([]core.PushEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items, q.closed
}

func (q *eventQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
