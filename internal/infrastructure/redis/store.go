package redis

import (
	"context"
	"strings"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/go-redis/redis/v8"
)

const scanBatch = 100

// Store implements ports.KeyValueStore on Redis. Capacity is the server's maxmemory:
// an OOM reply is reported as ports.ErrCapacityExceeded.
type Store struct {
	r redis.Cmdable
	// optional key prefix to namespace entries
	prefix string
}

// NewStore creates a Redis-backed key-value store.
func NewStore(r redis.Cmdable, prefix string) *Store {
	return &Store{r: r, prefix: prefix}
}

func (s *Store) namespaced(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get implements KeyValueStore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.r.Get(ctx, s.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set implements KeyValueStore.Set. Entries carry their own TTL, so keys are stored
// without a Redis expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	err := s.r.Set(ctx, s.namespaced(key), value, 0).Err()
	if isOOM(err) {
		return ports.ErrCapacityExceeded
	}
	return err
}

// Delete implements KeyValueStore.Delete.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.r.Del(ctx, s.namespaced(key)).Err()
}

// Keys implements KeyValueStore.Keys with SCAN so large keyspaces do not block the server.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	match := "*"
	if s.prefix != "" {
		match = globEscape(s.prefix+":") + "*"
	}
	var (
		keys   []string
		cursor uint64
		seen   = make(map[string]struct{})
	)
	for {
		batch, next, err := s.r.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			if s.prefix != "" {
				k = strings.TrimPrefix(k, s.prefix+":")
			}
			// SCAN may return a key more than once
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func isOOM(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "OOM ")
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string {
	return globReplacer.Replace(s)
}

var _ ports.KeyValueStore = (*Store)(nil)
