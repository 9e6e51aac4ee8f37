package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Typed binds a RecordCache to one value type, so call sites read and write T
// instead of raw JSON.
type Typed[T any] struct {
	records *RecordCache
}

// NewTyped returns a typed view of records.
func NewTyped[T any](records *RecordCache) Typed[T] {
	return Typed[T]{records: records}
}

// Read returns the cached value for key. A stored value that does not decode into T is
// deleted and reported as a miss.
func (t Typed[T]) Read(ctx context.Context, key string) (T, bool) {
	var v T
	raw, ok := t.records.ReadRaw(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.records.discard(ctx, key, err)
		var zero T
		return zero, false
	}
	return v, true
}

// Write stores v under key for ttl (the cache default when ttl <= 0).
func (t Typed[T]) Write(ctx context.Context, key string, v T, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		t.records.dropWrite(key, dropEncode, err)
		return
	}
	t.records.WriteRaw(ctx, key, b, ttl)
}
