// Package memstore is the default in-process catalogue.Store: a mutex-
// guarded map, no persistence across restarts.
package memstore

import (
	"context"
	"sync"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
)

// Store is an in-memory catalogue.Store.
type Store struct {
	mu   sync.RWMutex
	data map[catalogue.Key]catalogue.ToolOrigin
	keys []catalogue.Key // insertion order, for stable Scan
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[catalogue.Key]catalogue.ToolOrigin)}
}

var _ catalogue.Store = (*Store)(nil)

func (s *Store) Upsert(ctx context.Context, origin catalogue.ToolOrigin) error {
	return s.BatchUpsert(ctx, []catalogue.ToolOrigin{origin})
}

func (s *Store) BatchUpsert(ctx context.Context, origins []catalogue.ToolOrigin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range origins {
		k := o.Key()
		if _, exists := s.data[k]; !exists {
			s.keys = append(s.keys, k)
		}
		s.data[k] = o
	}
	return nil
}

func (s *Store) Get(ctx context.Context, keys []catalogue.Key) ([]*catalogue.ToolOrigin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*catalogue.ToolOrigin, len(keys))
	for i, k := range keys {
		if o, ok := s.data[k]; ok {
			cp := o
			out[i] = &cp
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, keys []catalogue.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	toDelete := make(map[catalogue.Key]struct{}, len(keys))
	for _, k := range keys {
		delete(s.data, k)
		toDelete[k] = struct{}{}
	}
	filtered := s.keys[:0:0]
	for _, k := range s.keys {
		if _, dead := toDelete[k]; !dead {
			filtered = append(filtered, k)
		}
	}
	s.keys = filtered
	return nil
}

func (s *Store) Scan(ctx context.Context, limit int) ([]catalogue.ToolOrigin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.keys)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]catalogue.ToolOrigin, 0, n)
	for _, k := range s.keys[:n] {
		out = append(out, s.data[k])
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
