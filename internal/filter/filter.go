// Package filter is the plugin boundary of the scale transform: it owns the
// configuration snapshot and the downstream sink, and applies the transform
// to each batch handed to it by the host.
package filter

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/internal/domain/scale"
	"github.com/okian/scalefilter/pkg/logger"
	"github.com/okian/scalefilter/pkg/metrics"
)

// Sink receives batches once the filter is done with them.
type Sink interface {
	Deliver(ctx context.Context, batch model.Batch) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch model.Batch) error

// Deliver calls fn.
func (fn SinkFunc) Deliver(ctx context.Context, batch model.Batch) error { return fn(ctx, batch) }

// Filter is one configured instance of the scale filter.
//
// Ingest may be called from several goroutines as long as each call has
// exclusive use of its batch. Reconfigure swaps the settings atomically, so a
// batch is always scaled with a single consistent enable/factor pair.
type Filter struct {
	sink     Sink
	sinkName string
	logger   logger.Logger

	settings atomic.Pointer[Settings]
	category atomic.Pointer[Category]
	closed   atomic.Bool
}

// Init binds a configuration snapshot and a sink into a new filter.
func Init(c *Category, sink Sink, opts ...Option) (*Filter, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	if c == nil {
		return nil, ErrNilCategory
	}
	f := &Filter{
		sink:     sink,
		sinkName: "downstream",
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.apply(context.Background(), c); err != nil {
		return nil, err
	}
	return f, nil
}

// Ingest scales batch in place when the filter is enabled and forwards it to
// the sink exactly once. The sink's error is returned as is.
func (f *Filter) Ingest(ctx context.Context, batch model.Batch) error {
	if f.closed.Load() {
		return ErrShutdown
	}
	s := f.settings.Load()

	metrics.RecordBatchIngested()
	if s.Enabled {
		start := time.Now()
		st := scale.ApplyCounted(batch, s.Factor, true)
		metrics.RecordTransform(st.Readings, st.Integers, st.Floats, st.Skipped, sinceMs(start))
	} else {
		metrics.RecordBatchPassthrough()
	}

	start := time.Now()
	if err := f.sink.Deliver(ctx, batch); err != nil {
		metrics.RecordSinkError(f.sinkName)
		return err
	}
	metrics.RecordSinkDelivery(f.sinkName, sinceMs(start))
	return nil
}

// Deliver makes a Filter usable as the sink of another filter.
func (f *Filter) Deliver(ctx context.Context, batch model.Batch) error {
	return f.Ingest(ctx, batch)
}

// Reconfigure replaces the configuration snapshot. Batches already inside
// Ingest finish with the settings they started with.
func (f *Filter) Reconfigure(ctx context.Context, c *Category) error {
	if c == nil {
		return ErrNilCategory
	}
	if f.closed.Load() {
		return ErrShutdown
	}
	return f.apply(ctx, c)
}

// Settings returns the current settings snapshot.
func (f *Filter) Settings() Settings {
	return *f.settings.Load()
}

// Category returns a copy of the current configuration category.
func (f *Filter) Category() *Category {
	return f.category.Load().Clone()
}

// Shutdown releases the filter. Calling it more than once is a no-op.
func (f *Filter) Shutdown(ctx context.Context) error {
	if f.closed.Swap(true) {
		return nil
	}
	f.logger.Info(ctx, "scale filter shut down")
	return nil
}

// apply installs c. A factor that resolves to ±Inf or NaN is refused and
// the previous snapshot stays in place.
func (f *Filter) apply(ctx context.Context, c *Category) error {
	c = c.Clone()
	s := ResolveSettings(c)
	if math.IsInf(s.Factor, 0) || math.IsNaN(s.Factor) {
		return fmt.Errorf("%w: factor %q is not finite", ErrInvalidValue, s.FactorText)
	}
	if !s.FactorValid {
		metrics.RecordFactorParseFailure()
		f.logger.Warn(ctx, "scale factor is not a valid number, using numeric prefix",
			logger.String("factor_text", s.FactorText),
			logger.Float64("factor", s.Factor))
	}
	f.category.Store(c)
	f.settings.Store(&s)
	metrics.UpdateFilterSettings(s.Enabled, s.Factor)
	f.logger.Info(ctx, "scale filter configured",
		logger.Bool("enabled", s.Enabled),
		logger.Float64("factor", s.Factor))
	return nil
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

var _ Sink = (*Filter)(nil)

// MultiSink delivers each batch to every sink in order and stops at the
// first error. Nil sinks are dropped.
func MultiSink(sinks ...Sink) Sink {
	list := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			list = append(list, s)
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return SinkFunc(func(ctx context.Context, batch model.Batch) error {
		for _, s := range list {
			if err := s.Deliver(ctx, batch); err != nil {
				return err
			}
		}
		return nil
	})
}
