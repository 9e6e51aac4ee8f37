package bbolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"go.etcd.io/bbolt"
)

const cacheBucket = "cache"

// Store is a BoltDB-backed KeyValueStore with a byte quota. Usage is counted as
// len(key)+len(value) per entry and recomputed from disk at Open.
type Store struct {
	db       *bbolt.DB
	maxBytes int64
	used     atomic.Int64
	// quotaMu spans the quota check and the commit handler that applies the delta
	quotaMu sync.Mutex
}

// Open opens (or creates) the store at path. maxBytes <= 0 means unlimited.
func Open(path string, maxBytes int64) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &Store{db: db, maxBytes: maxBytes}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", cacheBucket, err)
		}
		var used int64
		if err := b.ForEach(func(k, v []byte) error {
			used += int64(len(k) + len(v))
			return nil
		}); err != nil {
			return fmt.Errorf("scan bucket %s: %w", cacheBucket, err)
		}
		s.used.Store(used)
		return nil
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(cacheBucket)).Get([]byte(key))
		if v == nil {
			return ports.ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cacheBucket))
		delta := int64(len(key) + len(value))
		if old := b.Get([]byte(key)); old != nil {
			delta -= int64(len(key) + len(old))
		}
		if s.maxBytes > 0 && s.used.Load()+delta > s.maxBytes {
			return ports.ErrCapacityExceeded
		}
		if err := b.Put([]byte(key), value); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		tx.OnCommit(func() { s.used.Add(delta) })
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cacheBucket))
		old := b.Get([]byte(key))
		if old == nil {
			return nil
		}
		freed := int64(len(key) + len(old))
		if err := b.Delete([]byte(key)); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		tx.OnCommit(func() { s.used.Add(-freed) })
		return nil
	})
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Used returns the bytes currently accounted against the quota.
func (s *Store) Used() int64 {
	return s.used.Load()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "bbolt" }

// Check implements ports.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(cacheBucket)) == nil {
			return fmt.Errorf("bucket %s missing", cacheBucket)
		}
		return nil
	})
}

var _ ports.KeyValueStore = (*Store)(nil)
