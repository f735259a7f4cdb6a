package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/storage"
)

// Store is an in-memory table backend.
type Store struct {
	mu     sync.RWMutex
	items  map[string]domain.Record
	closed bool
}

var _ storage.Backend = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		items: make(map[string]domain.Record),
	}
}

func (s *Store) Scan(ctx context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed()
	}

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	result := make([]domain.Record, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.items[k].Clone())
	}
	return result, nil
}

func (s *Store) Put(ctx context.Context, key string, item domain.Record, ifNotExists bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed()
	}
	if _, exists := s.items[key]; exists && ifNotExists {
		return storage.ErrKeyExists(key)
	}

	s.items[key] = item.Clone()
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close discards the records. Later calls fail with a closed error.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	return nil
}
