// Package worker drains the batch queue and feeds each batch to the filter.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/scalefilter/internal/adapters/mq/queue"
	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/logger"
	"github.com/okian/scalefilter/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Ingester consumes one batch. The worker gives up the batch when it calls
// Ingest.
type Ingester interface {
	Ingest(ctx context.Context, batch model.Batch) error
}

// IngesterFunc adapts a function to Ingester.
type IngesterFunc func(ctx context.Context, batch model.Batch) error

// Ingest calls fn.
func (fn IngesterFunc) Ingest(ctx context.Context, batch model.Batch) error { return fn(ctx, batch) }

// ErrorHandler is told about items whose ingest failed.
type ErrorHandler func(ctx context.Context, it queue.Item, err error)

// Queue defines how workers receive items.
type Queue interface {
	Dequeue() <-chan queue.Item
	Ack()
}

// Worker processes queued batches.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is
	// closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after the item it is currently handling.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a Queue.
type InMemoryWorker struct {
	queue    Queue
	ingester Ingester
	name     string
	onError  ErrorHandler

	// set by the pool
	processed *atomic.Int64

	stop     chan struct{}
	stopOnce atomic.Bool
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, ingester Ingester, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		ingester: ingester,
		name:     "worker",
		onError:  func(context.Context, queue.Item, error) {},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case it, ok := <-items:
			if !ok {
				return
			}
			w.queue.Ack()
			w.process(ctx, it)
		}
	}
}

// Shutdown stops the worker and waits for its loop to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	if !w.stopOnce.Swap(true) {
		close(w.stop)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, it queue.Item) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.ingester.Ingest(ctx, it.Batch); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "ingest_error")
		w.logger.Error(ctx, "ingest failed",
			logger.String("batch_id", it.ID),
			logger.Int("readings", len(it.Batch)),
			logger.Error(err),
		)
		w.onError(ctx, it, err)
		return
	}
	if w.processed != nil {
		w.processed.Add(1)
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown     chan struct{}
	shutdownOnce atomic.Bool

	processed         atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one means one
// worker per CPU. opts are applied to every worker.
func NewPool(workerCount int, q Queue, ingester Ingester, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             q,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Nop(),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, ingester, wopts...)
		w.processed = &pool.processed
		pool.workers[i] = w
	}
	probe := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(probe)
	}
	pool.logger = probe.logger.Named("worker-pool")

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerBatchesPerSecond(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of batches ingested without error.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	last := p.processed.Load()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			last = p.updateMetrics(last)
		}
	}
}

func (p *Pool) updateMetrics(last int64) int64 {
	now := time.Now()
	current := p.processed.Load()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerBatchesPerSecond(float64(current-last) / elapsed)
	}
	p.lastProcessedTime = now
	return current
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.shutdownOnce.Swap(true) {
		return nil
	}
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
