package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
)

type evictionCandidate struct {
	key      string
	storedAt int64
}

// evictOldest deletes the n entries under prefix with the oldest storedAt. Entries whose
// header cannot be decoded rank before everything else. Ties are broken by key.
func evictOldest(ctx context.Context, store ports.KeyValueStore, prefix string, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	candidates := make([]evictionCandidate, 0, len(keys))
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		raw, err := store.Get(ctx, k)
		if errors.Is(err, ports.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		var h entryHeader
		if json.Unmarshal(raw, &h) != nil || !h.valid() {
			h.StoredAt = math.MinInt64
		}
		candidates = append(candidates, evictionCandidate{key: k, storedAt: h.StoredAt})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].storedAt != candidates[j].storedAt {
			return candidates[i].storedAt < candidates[j].storedAt
		}
		return candidates[i].key < candidates[j].key
	})

	evicted := 0
	for _, c := range candidates[:min(n, len(candidates))] {
		if err := store.Delete(ctx, c.key); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// deleteMatching deletes every key under prefix whose unprefixed form satisfies match.
func deleteMatching(ctx context.Context, store ports.KeyValueStore, prefix string, match func(string) bool) (int, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, k := range keys {
		name, ok := strings.CutPrefix(k, prefix)
		if !ok || !match(name) {
			continue
		}
		if err := store.Delete(ctx, k); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// setWithEviction writes value and, when the store reports it is full, calls evict and
// retries exactly once. The returned error is the final outcome; callers drop it.
func setWithEviction(ctx context.Context, store ports.KeyValueStore, key string, value []byte, evict func() int) (retried bool, err error) {
	err = store.Set(ctx, key, value)
	if !errors.Is(err, ports.ErrCapacityExceeded) {
		return false, err
	}
	evict()
	return true, store.Set(ctx, key, value)
}
