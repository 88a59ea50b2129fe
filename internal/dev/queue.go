package dev

import "sync"

// changeQueue holds the changes not yet handled by a rebuild. Changes to
// the same path collapse into the latest one, so the queue is bounded by
// the number of watched files and never drops a change.
type changeQueue struct {
	mu      sync.Mutex
	order   []string
	pending map[string]Change

	// ready has room for one signal; a pending signal covers every change
	// pushed before the next take.
	ready chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		pending: make(map[string]Change),
		ready:   make(chan struct{}, 1),
	}
}

// push queues changes and signals ready without blocking.
func (q *changeQueue) push(changes []Change) {
	if len(changes) == 0 {
		return
	}
	q.mu.Lock()
	for _, c := range changes {
		if _, ok := q.pending[c.Path]; !ok {
			q.order = append(q.order, c.Path)
		}
		q.pending[c.Path] = c
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// take returns the queued changes in first-seen order and empties the
// queue.
func (q *changeQueue) take() []Change {
	q.mu.Lock()
	defer q.mu.Unlock()
	changes := make([]Change, 0, len(q.order))
	for _, p := range q.order {
		changes = append(changes, q.pending[p])
	}
	q.order = nil
	clear(q.pending)
	return changes
}

// size returns the number of queued paths.
func (q *changeQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
