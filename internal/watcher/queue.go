package watcher

import (
	"sync"
	"time"

	"github.com/semidx/semidx/internal/model"
)

// indexQueue is the pending-work list between the filesystem watcher and the
// drain loop. FIFO, except that enqueueing a path replaces any existing entry
// for that path so only the latest event per file survives.
type indexQueue struct {
	mu    sync.Mutex
	items []model.QueueItem
}

func newIndexQueue() *indexQueue {
	return &indexQueue{}
}

func (q *indexQueue) Enqueue(path string, event model.QueueEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	for _, item := range q.items {
		if item.Path != path {
			kept = append(kept, item)
		}
	}
	q.items = append(kept, model.QueueItem{
		Path:       path,
		Event:      event,
		EnqueuedAt: time.Now(),
	})
}

// PopBatch removes and returns up to n items from the front of the queue.
func (q *indexQueue) PopBatch(n int) []model.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}
	batch := make([]model.QueueItem, n)
	copy(batch, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return batch
}

func (q *indexQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
