// Package repository keeps the readings the filter has delivered downstream.
package repository

import (
	"context"

	"github.com/okian/scalefilter/internal/domain/model"
)

// Store provides write and read access to delivered readings.
//
// Append must not keep references into the batch it is given; stores
// persist an encoded copy so the caller can reuse the batch afterwards.
type Store interface {
	// Append persists every reading of batch, in order.
	Append(ctx context.Context, batch model.Batch) error

	// Latest returns up to n readings, newest first.
	Latest(ctx context.Context, n int) ([]*model.Reading, error)

	// Count returns the number of readings currently held.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}
