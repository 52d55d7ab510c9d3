package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/metrics"
)

const (
	defaultMemoryCapacity        = 10_000
	defaultMetricsUpdateInterval = 5 * time.Second
)

// MemoryStore is a bounded ring of encoded readings. Once full, every
// Append overwrites the oldest entries. A reading whose UUID is already held
// is not stored again.
type MemoryStore struct {
	mu       sync.RWMutex
	ring     []entry
	byUUID   map[string]int
	next     int
	size     int
	capacity int
	closed   bool

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs a memory store with configuration options. The
// metrics goroutine stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		capacity:              defaultMemoryCapacity,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ring = make([]entry, s.capacity)
	s.byUUID = make(map[string]int)

	metrics.UpdateStoreReadings(0)
	s.startMetricsUpdater(ctx)
	return s
}

type entry struct {
	uuid string
	data []byte
}

// Append implements Store.Append. Readings already stored under the same
// UUID are skipped, so redelivering a batch leaves the store unchanged.
func (s *MemoryStore) Append(ctx context.Context, batch model.Batch) error {
	encoded := make([]entry, 0, len(batch))
	for _, r := range batch {
		if r == nil {
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode reading %s: %w", r.UUID, err)
		}
		encoded = append(encoded, entry{uuid: r.UUID, data: data})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, e := range encoded {
		if e.uuid != "" {
			if _, ok := s.byUUID[e.uuid]; ok {
				continue
			}
		}
		if old := s.ring[s.next]; old.data != nil && old.uuid != "" {
			delete(s.byUUID, old.uuid)
		}
		s.ring[s.next] = e
		if e.uuid != "" {
			s.byUUID[e.uuid] = s.next
		}
		s.next = (s.next + 1) % s.capacity
		if s.size < s.capacity {
			s.size++
		}
	}
	return nil
}

// Latest implements Store.Latest.
func (s *MemoryStore) Latest(ctx context.Context, n int) ([]*model.Reading, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	if n > s.size {
		n = s.size
	}
	raw := make([][]byte, n)
	for i := 0; i < n; i++ {
		idx := (s.next - 1 - i + s.capacity) % s.capacity
		raw[i] = s.ring[idx].data
	}
	s.mu.RUnlock()

	out := make([]*model.Reading, 0, n)
	for _, data := range raw {
		r := new(model.Reading)
		if err := json.Unmarshal(data, r); err != nil {
			return nil, fmt.Errorf("decode stored reading: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, nil
}

// Capacity returns the ring size.
func (s *MemoryStore) Capacity() int { return s.capacity }

// Close stops the metrics goroutine. Further Appends fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	size := s.size
	s.mu.RUnlock()
	metrics.UpdateStoreReadings(size)
}
