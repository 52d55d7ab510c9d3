// Package service wires the scale filter into a running pipeline: batches
// are deduplicated by id, queued, scaled by a worker pool and delivered to
// the configured sinks.
package service

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/scalefilter/internal/adapters/mq/queue"
	"github.com/okian/scalefilter/internal/adapters/mq/worker"
	"github.com/okian/scalefilter/internal/adapters/repository"
	"github.com/okian/scalefilter/internal/domain/dedupe"
	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/internal/filter"
	"github.com/okian/scalefilter/pkg/logger"
	"github.com/okian/scalefilter/pkg/metrics"
)

type namedSink struct {
	name string
	sink filter.Sink
}

// Service implements the API dependencies for the scale pipeline.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	ownsStore bool
	stopRun   context.CancelFunc
	sinks     []namedSink
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	filter    *filter.Filter
	pool      *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	storeSize   int
	category    *filter.Category

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued batches.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the batch-id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStoreSize sets the capacity of the default in-memory store.
func WithStoreSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.storeSize = size
		}
	}
}

// WithStore replaces the default in-memory readings store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSink adds a downstream sink that receives every batch after the store.
func WithSink(name string, sink filter.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
		}
	}
}

// WithFilterConfig seeds the filter's enable switch and factor text.
func WithFilterConfig(enable bool, factor string) Option {
	return func(s *Service) {
		c := filter.DefaultCategory()
		_ = c.SetValue(filter.ItemEnable, strconv.FormatBool(enable))
		if factor != "" {
			_ = c.SetValue(filter.ItemFactor, factor)
		}
		s.category = c
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  100_000,
		storeSize:   10_000,
		category:    filter.DefaultCategory(),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting scale service...")

	// Workers outlive ctx: accepted batches are drained by Stop, not
	// abandoned when the caller's context ends.
	runCtx, stopRun := context.WithCancel(context.WithoutCancel(ctx))

	if s.store == nil {
		s.store = repository.NewMemoryStore(runCtx, repository.WithCapacity(s.storeSize))
		s.ownsStore = true
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	sinks := []filter.Sink{repository.NewSink(s.store)}
	for _, ns := range s.sinks {
		sinks = append(sinks, instrumentedSink(ns))
	}
	f, err := filter.Init(s.category, filter.MultiSink(sinks...),
		filter.WithLogger(s.logger.Named("filter")),
		filter.WithSinkName("pipeline"),
	)
	if err != nil {
		stopRun()
		s.releaseStore()
		return err
	}
	s.filter = f

	s.pool = worker.NewPool(s.workerCount, s.queue, s.filter,
		worker.WithLogger(s.logger),
		worker.WithErrorHandler(s.ingestFailed),
	)
	s.pool.Start(runCtx)
	s.stopRun = stopRun

	s.started = true
	st := f.Settings()
	s.logger.Info(ctx, "scale service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("enabled", st.Enabled),
		logger.Float64("factor", st.Factor),
	)
	return nil
}

// Stop drains the queue, shuts the filter down and closes every sink.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scale service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.filter.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, ns := range s.sinks {
		if c, ok := ns.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.stopRun()
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	s.releaseStore()

	s.started = false
	s.logger.Info(ctx, "scale service stopped")
	return errors.Join(errs...)
}

// Ingest submits batch under batchID. A batch id seen before is reported as
// a duplicate and not queued again, so a retried request never scales the
// same readings twice.
func (s *Service) Ingest(ctx context.Context, batchID string, batch model.Batch) (duplicate bool, err error) {
	if batchID == "" {
		return false, ErrEmptyBatchID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordBatchDuplicate()
		s.logger.Debug(ctx, "duplicate batch skipped", logger.String("batch_id", batchID))
		return true, nil
	}

	now := time.Now().UTC()
	for _, r := range batch {
		if r != nil {
			r.Normalize(now)
		}
	}

	if err := s.queue.Enqueue(ctx, queue.Item{ID: batchID, Batch: batch}); err != nil {
		s.deduper.Unrecord(ctx, batchID)
		if errors.Is(err, queue.ErrFull) {
			return false, ErrBackpressure
		}
		return false, err
	}
	return false, nil
}

// Latest returns up to n delivered readings, newest first.
func (s *Service) Latest(ctx context.Context, n int) ([]*model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.Latest(ctx, n)
}

// FilterSettings returns the filter's current settings.
func (s *Service) FilterSettings(ctx context.Context) (filter.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return filter.Settings{}, ErrNotStarted
	}
	return s.filter.Settings(), nil
}

// Reconfigure updates the enable switch and/or factor text. Nil arguments
// keep the current value.
func (s *Service) Reconfigure(ctx context.Context, enable *bool, factor *string) (filter.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return filter.Settings{}, ErrNotStarted
	}

	c := s.filter.Category()
	if enable != nil {
		if err := c.SetValue(filter.ItemEnable, strconv.FormatBool(*enable)); err != nil {
			return filter.Settings{}, err
		}
	}
	if factor != nil {
		if err := c.SetValue(filter.ItemFactor, *factor); err != nil {
			return filter.Settings{}, err
		}
	}
	if err := s.filter.Reconfigure(ctx, c); err != nil {
		return filter.Settings{}, err
	}
	s.category = c
	return s.filter.Settings(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len()
	stats["dedupeEntries"] = s.deduper.Size()
	stats["batchesProcessed"] = s.pool.Processed()
	if n, err := s.store.Count(ctx); err == nil {
		stats["storedReadings"] = n
		metrics.UpdateStoreReadings(n)
	} else {
		s.logger.Warn(ctx, "store count failed", logger.Error(err))
	}
	st := s.filter.Settings()
	stats["filter"] = map[string]any{
		"enable": st.Enabled,
		"factor": st.Factor,
	}
	return stats
}

// releaseStore forgets a store the service built itself, so the next Start
// gets a fresh one. A store passed with WithStore stays bound.
func (s *Service) releaseStore() {
	if s.ownsStore {
		s.store = nil
		s.ownsStore = false
	}
}

// ingestFailed releases the batch id so the producer can retry.
func (s *Service) ingestFailed(ctx context.Context, it queue.Item, err error) {
	s.deduper.Unrecord(ctx, it.ID)
	metrics.RecordErrorByComponent("service", "delivery_failed")
}

func instrumentedSink(ns namedSink) filter.Sink {
	return filter.SinkFunc(func(ctx context.Context, batch model.Batch) error {
		start := time.Now()
		if err := ns.sink.Deliver(ctx, batch); err != nil {
			metrics.RecordSinkError(ns.name)
			return err
		}
		metrics.RecordSinkDelivery(ns.name, float64(time.Since(start).Microseconds())/1000)
		return nil
	})
}
