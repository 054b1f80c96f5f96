package store

import (
	"context"
	"sort"
	"sync"

	"github.com/i474232898/weather-recorder/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Like the SQL store it only ever appends.
type MemoryStore struct {
	mu sync.RWMutex

	readings []weather.Reading
	nextID   uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// SaveReading appends a copy of r and assigns its id.
func (s *MemoryStore) SaveReading(_ context.Context, r *weather.Reading) error {
	if err := checkInsert(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++
	s.readings = append(s.readings, *r)
	return nil
}

// LatestReadings returns up to limit readings ordered by timestamp descending,
// ties broken by id.
func (s *MemoryStore) LatestReadings(_ context.Context, limit int) ([]weather.Reading, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out := make([]weather.Reading, len(s.readings))
	copy(out, s.readings)
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored readings.
func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.readings)), nil
}
