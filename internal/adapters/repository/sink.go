package repository

import (
	"context"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/metrics"
)

// Sink delivers filtered batches into a Store.
type Sink struct {
	store Store
}

// NewSink adapts store to the filter's sink contract.
func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

// Deliver appends batch to the store and refreshes the stored-readings gauge.
func (s *Sink) Deliver(ctx context.Context, batch model.Batch) error {
	if err := s.store.Append(ctx, batch); err != nil {
		return err
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateStoreReadings(n)
	}
	return nil
}
