package fileio

import (
	"context"
	"sync"
)

// Queue is an unbounded multi-producer, single-consumer FIFO of commands.
// Enqueue never blocks; Dequeue waits for work.
type Queue struct {
	mu     sync.Mutex
	items  []Command
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Enqueue appends cmd. Commands from a single producer are dequeued in the
// order they were enqueued. Nil commands are ignored.
func (q *Queue) Enqueue(cmd Command) {
	if cmd == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest command, waiting while the queue is
// empty. Queued commands are always returned before ErrQueueClosed or a
// context error, so a closed queue still drains.
func (q *Queue) Dequeue(ctx context.Context) (Command, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return cmd, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len reports the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the kinds of the commands still queued, oldest first.
func (q *Queue) Pending() []Kind {
	q.mu.Lock()
	defer q.mu.Unlock()
	kinds := make([]Kind, 0, len(q.items))
	for _, cmd := range q.items {
		kinds = append(kinds, cmd.Kind())
	}
	return kinds
}

// Close marks the queue closed and wakes a waiting consumer. Commands already
// queued remain available to Dequeue.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.once.Do(func() { close(q.done) })
}

// CloseAndDrain closes the queue and removes every queued command in one
// step, returning them oldest first.
func (q *Queue) CloseAndDrain() []Command {
	q.mu.Lock()
	q.closed = true
	leftover := q.items
	q.items = nil
	q.mu.Unlock()
	q.once.Do(func() { close(q.done) })
	return leftover
}
