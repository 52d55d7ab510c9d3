package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/scalefilter/internal/domain/model"
)

func reading(asset string, v int64) *model.Reading {
	return model.NewReading(asset, model.NewDatapoint("v", model.IntegerValue(v)))
}

func TestMemoryStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithCapacity(4))
	defer store.Close()

	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("expected count 0, got %d", n)
	}

	batch := model.Batch{reading("a", 1), reading("b", 2)}
	if err := store.Append(ctx, batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}

	latest, err := store.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(latest))
	}
	if latest[0].AssetCode != "b" || latest[1].AssetCode != "a" {
		t.Errorf("expected newest first, got %s, %s", latest[0].AssetCode, latest[1].AssetCode)
	}
	if latest[0].UUID != batch[1].UUID {
		t.Errorf("expected uuid %s, got %s", batch[1].UUID, latest[0].UUID)
	}
}

func TestMemoryStore_KeepsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithCapacity(4))
	defer store.Close()

	r := reading("a", 7)
	if err := store.Append(ctx, model.Batch{r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Datapoints[0].Value.SetInt(999)

	latest, err := store.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := latest[0].Datapoints[0].Value.Int(); got != 7 {
		t.Errorf("expected stored value 7, got %d", got)
	}
}

func TestMemoryStore_RingOverwritesOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithCapacity(3))
	defer store.Close()

	for i := int64(0); i < 5; i++ {
		if err := store.Append(ctx, model.Batch{reading(fmt.Sprintf("r%d", i), i)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n, _ := store.Count(ctx); n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}

	latest, err := store.Latest(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"r4", "r3", "r2"}
	for i, r := range latest {
		if r.AssetCode != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], r.AssetCode)
		}
	}
}

func TestMemoryStore_InvalidLimitAndClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)

	if _, err := store.Latest(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected second close error: %v", err)
	}
	if err := store.Append(ctx, model.Batch{reading("a", 1)}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithCapacity(1000))
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Append(ctx, model.Batch{reading(fmt.Sprintf("g%d", id), int64(j))})
			}
		}(i)
	}
	wg.Wait()

	if n, _ := store.Count(ctx); n != 500 {
		t.Errorf("expected count 500, got %d", n)
	}
}

func TestMemoryStore_AppendIsIdempotentByUUID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithCapacity(2))
	defer store.Close()

	r := reading("a", 1)
	if err := store.Append(ctx, model.Batch{r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Append(ctx, model.Batch{r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("expected a repeated uuid to be stored once, got count %d", n)
	}

	// Once r is evicted its uuid may be stored again.
	_ = store.Append(ctx, model.Batch{reading("b", 2), reading("c", 3)})
	if err := store.Append(ctx, model.Batch{r}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	latest, _ := store.Latest(ctx, 1)
	if len(latest) != 1 || latest[0].UUID != r.UUID {
		t.Errorf("expected evicted uuid to be stored again, got %+v", latest)
	}
}

func TestSink_Deliver(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithCapacity(8))
	defer store.Close()

	sink := NewSink(store)
	if err := sink.Deliver(ctx, model.Batch{reading("a", 1), nil, reading("b", 2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("expected nil readings to be skipped, got count %d", n)
	}

	_ = store.Close()
	if err := sink.Deliver(ctx, model.Batch{reading("c", 3)}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from a closed store, got %v", err)
	}
}
