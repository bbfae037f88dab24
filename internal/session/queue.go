package session

import (
	"container/list"
	"sync"
)

// turnQueue serializes turns for a single session. Events for the same
// user are processed to completion in arrival order; one in-flight turn
// per session, sessions for different users drain concurrently.
type turnQueue struct {
	mu       sync.Mutex
	turns    *list.List
	draining bool
}

// Do enqueues a turn for this session and starts a drainer if none is
// active. The turn runs on a separate goroutine; Do never blocks on
// turn execution.
func (s *Session) Do(turn func()) {
	q := &s.turns
	q.mu.Lock()
	if q.turns == nil {
		q.turns = list.New()
	}
	q.turns.PushBack(turn)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	go q.drain()
}

// drain runs queued turns in FIFO order until the queue is empty.
func (q *turnQueue) drain() {
	for {
		q.mu.Lock()
		front := q.turns.Front()
		if front == nil {
			q.draining = false
			q.mu.Unlock()
			return
		}
		q.turns.Remove(front)
		q.mu.Unlock()

		turn := front.Value.(func())
		turn()
	}
}
