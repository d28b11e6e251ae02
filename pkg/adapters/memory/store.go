package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/arbor-sh/arbor/pkg/domain"
	"github.com/arbor-sh/arbor/pkg/ports"
)

// Store implements ports.DataStore in memory.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]domain.Record
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Record),
	}
}

// Seed loads records keyed by their ID, replacing existing entries.
func (s *Store) Seed(records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.data[rec.ID] = rec
	}
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, key string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[key]
	if !ok {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return rec, nil
}

// Query returns matching records ordered by key, so results are stable
// across calls for a fixed store.
func (s *Store) Query(ctx context.Context, pred ports.Predicate) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Record, 0, len(keys))
	for _, k := range keys {
		rec := s.data[k]
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Put creates or replaces the record under the key.
func (s *Store) Put(ctx context.Context, key string, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = rec
	return nil
}
