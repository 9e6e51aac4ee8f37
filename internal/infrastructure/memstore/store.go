package memstore

import (
	"context"
	"sync"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
)

// Store is an in-memory KeyValueStore with a byte quota, the process-local stand-in for
// browser storage. Usage is counted as len(key)+len(value) per entry.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	used     int64
	maxBytes int64
}

// New creates a store holding at most maxBytes. maxBytes <= 0 means unlimited.
func New(maxBytes int64) *Store {
	return &Store{data: make(map[string][]byte), maxBytes: maxBytes}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used + int64(len(key)+len(value))
	if old, ok := s.data[key]; ok {
		next -= int64(len(key) + len(old))
	}
	if s.maxBytes > 0 && next > s.maxBytes {
		return ports.ErrCapacityExceeded
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	s.used = next
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.data[key]; ok {
		s.used -= int64(len(key) + len(old))
		delete(s.data, key)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Used returns the bytes currently accounted against the quota.
func (s *Store) Used() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

var _ ports.KeyValueStore = (*Store)(nil)
