package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// Queue is an unbounded in-process FIFO of intake tasks. Enqueue never
// blocks; Dequeue blocks until a task arrives, the context ends or the
// queue is closed and drained.
type Queue struct {
	mu     sync.Mutex
	items  []domain.IntakeTask
	closed bool

	ready chan struct{}
	done  chan struct{}
}

func New() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *Queue) Enqueue(_ context.Context, task domain.IntakeTask) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueClosed
	}
	q.items = append(q.items, task)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (domain.IntakeTask, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items[0] = domain.IntakeTask{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// Wake the next waiting consumer while work remains.
			if remaining > 0 {
				q.signal()
			}
			return task, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return domain.IntakeTask{}, domain.ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return domain.IntakeTask{}, ctx.Err()
		case <-q.ready:
		case <-q.done:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting tasks. Already queued tasks can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
