// Package queue hands reading batches from the ingest surface to the worker
// pool.
//
// A batch is owned by whoever holds it: the producer gives it up on a
// successful Enqueue and exactly one consumer receives it from Dequeue.
package queue

import (
	"context"
	"sync"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Item is one unit of work: a batch and the id it was submitted under.
type Item struct {
	ID    string
	Batch model.Batch
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an item. It never blocks; a full or closed queue is
	// reported through the error.
	Enqueue(ctx context.Context, it Item) error

	// Dequeue returns the channel items are received from. It is closed
	// once the queue is closed and drained.
	Dequeue() <-chan Item

	// Len returns the current number of queued items.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting items. Items already queued stay receivable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds an item to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, it Item) error {
	// Holding the read lock keeps Close from closing the channel under us.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.enqueueFailed("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		q.enqueueFailed("context_cancelled")
		return ErrCancelled
	}

	select {
	case q.items <- it:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items), q.capacity)
		return nil
	default:
		q.enqueueFailed("queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue. Every receiver shares the
// same channel, so each item goes to exactly one of them.
func (q *InMemoryQueue) Dequeue() <-chan Item {
	return q.items
}

// Ack records that a consumer took an item off the queue.
func (q *InMemoryQueue) Ack() {
	metrics.RecordQueueDequeue()
	metrics.UpdateQueueSize(len(q.items), q.capacity)
}

// Len returns the current number of queued items.
func (q *InMemoryQueue) Len() int {
	size := len(q.items)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops the queue from accepting new items.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) enqueueFailed(reason string) {
	metrics.RecordQueueEnqueueError(reason)
	metrics.RecordErrorByComponent("queue", reason)
}
