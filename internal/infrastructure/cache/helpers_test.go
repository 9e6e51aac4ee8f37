package cache_test

import (
	"context"
	"sync"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/memstore"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(ms int64) *fakeClock { return &fakeClock{now: time.UnixMilli(ms)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.UnixMilli(ms)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore fails the first failSets calls to Set with ErrCapacityExceeded.
type flakyStore struct {
	*memstore.Store
	mu       sync.Mutex
	failSets int
	sets     int
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.sets++
	fail := s.failSets > 0
	if fail {
		s.failSets--
	}
	s.mu.Unlock()
	if fail {
		return ports.ErrCapacityExceeded
	}
	return s.Store.Set(ctx, key, value)
}

func (s *flakyStore) setCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}
