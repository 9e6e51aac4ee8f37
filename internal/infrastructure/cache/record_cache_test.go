package cache_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/cache"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/memstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type chapter struct {
	Title string `json:"title"`
	Words int    `json:"words"`
}

func newRecords(store ports.KeyValueStore, clock *fakeClock) *cache.RecordCache {
	return cache.NewRecordCache(store, cache.RecordCacheConfig{Now: clock.Now}, nil, nil)
}

func TestRecordCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := newRecords(memstore.New(0), newClock(1_000))
	chapters := cache.NewTyped[[]chapter](rc)

	want := []chapter{{Title: "Prologue", Words: 1200}, {Title: "One", Words: 3400}}
	chapters.Write(ctx, "novel_5_chapters", want, time.Minute)

	got, ok := chapters.Read(ctx, "novel_5_chapters")
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestRecordCache_SubMillisecondTTLRoundTrips(t *testing.T) {
	ctx := context.Background()
	clock := newClock(1_000)
	store := memstore.New(0)
	rc := newRecords(store, clock)

	rc.WriteRaw(ctx, "genres", []byte(`[1]`), 500*time.Microsecond)

	got, ok := rc.ReadRaw(ctx, "genres")
	require.True(t, ok)
	require.JSONEq(t, `[1]`, string(got))

	clock.Advance(2 * time.Millisecond)
	_, ok = rc.ReadRaw(ctx, "genres")
	require.False(t, ok)
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestRecordCache_ExpiredEntryIsMissAndDeleted(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)
	clock := newClock(1_000)
	rc := newRecords(store, clock)
	ints := cache.NewTyped[int](rc)

	ints.Write(ctx, "count", 7, time.Minute)

	clock.Advance(time.Minute)
	v, ok := ints.Read(ctx, "count")
	require.True(t, ok, "entry is fresh while now - storedAt == ttl")
	require.Equal(t, 7, v)

	clock.Advance(time.Millisecond)
	_, ok = ints.Read(ctx, "count")
	require.False(t, ok)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.NotContains(t, keys, cache.DefaultRecordPrefix+"count")
}

func TestRecordCache_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	clock := newClock(1_000)
	rc := cache.NewRecordCache(memstore.New(0), cache.RecordCacheConfig{DefaultTTL: 2 * time.Second, Now: clock.Now}, nil, nil)

	rc.WriteRaw(ctx, "k", []byte(`"v"`), 0)
	clock.Advance(2 * time.Second)
	_, ok := rc.ReadRaw(ctx, "k")
	require.True(t, ok)
	clock.Advance(time.Millisecond)
	_, ok = rc.ReadRaw(ctx, "k")
	require.False(t, ok)
}

func TestRecordCache_InvalidateSubstring(t *testing.T) {
	ctx := context.Background()
	rc := newRecords(memstore.New(0), newClock(1_000))
	for _, k := range []string{"novel_5_page1", "novel_5_page2", "novel_7_page1"} {
		rc.WriteRaw(ctx, k, []byte(`1`), time.Hour)
	}

	require.Equal(t, 2, rc.Invalidate(ctx, "novel_5"))

	_, ok := rc.ReadRaw(ctx, "novel_5_page1")
	require.False(t, ok)
	_, ok = rc.ReadRaw(ctx, "novel_5_page2")
	require.False(t, ok)
	_, ok = rc.ReadRaw(ctx, "novel_7_page1")
	require.True(t, ok)
}

func TestRecordCache_InvalidateMatchingAndAll(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)
	rc := newRecords(store, newClock(1_000))
	require.NoError(t, store.Set(ctx, "avatar:1", []byte("blob")))
	for _, k := range []string{"novel_5", "novel_55", "novel_5_page=1"} {
		rc.WriteRaw(ctx, k, []byte(`1`), time.Hour)
	}

	require.Equal(t, 2, rc.InvalidateMatching(ctx, regexp.MustCompile(`^novel_5(_|$)`)))
	_, ok := rc.ReadRaw(ctx, "novel_55")
	require.True(t, ok)

	require.Equal(t, 1, rc.InvalidateAll(ctx))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"avatar:1"}, keys, "other namespaces are untouched")
}

func TestRecordCache_EvictOldest(t *testing.T) {
	ctx := context.Background()
	clock := newClock(0)
	rc := newRecords(memstore.New(0), clock)
	for _, at := range []int64{300, 100, 500, 200, 400} {
		clock.Set(at)
		rc.WriteRaw(ctx, fmt.Sprintf("at_%d", at), []byte(`1`), time.Hour)
	}

	require.Equal(t, 2, rc.EvictOldest(ctx, 2))

	for _, at := range []int64{100, 200} {
		_, ok := rc.ReadRaw(ctx, fmt.Sprintf("at_%d", at))
		require.False(t, ok, "entry stored at %d", at)
	}
	for _, at := range []int64{300, 400, 500} {
		_, ok := rc.ReadRaw(ctx, fmt.Sprintf("at_%d", at))
		require.True(t, ok, "entry stored at %d", at)
	}
}

func TestRecordCache_CapacityExceededEvictsAndRetriesOnce(t *testing.T) {
	ctx := context.Background()
	clock := newClock(0)
	store := &flakyStore{Store: memstore.New(0)}
	reg := prometheus.NewRegistry()
	metrics := cache.NewMetrics(reg)
	rc := cache.NewRecordCache(store, cache.RecordCacheConfig{Now: clock.Now}, nil, metrics)

	for i := 1; i <= 7; i++ {
		clock.Set(int64(i * 100))
		rc.WriteRaw(ctx, fmt.Sprintf("old_%d", i), []byte(`1`), time.Hour)
	}
	setsBefore := store.setCalls()

	store.failSets = 1
	clock.Set(1_000)
	rc.WriteRaw(ctx, "fresh", []byte(`"ok"`), time.Hour)

	require.Equal(t, setsBefore+2, store.setCalls(), "one failed attempt and exactly one retry")
	got, ok := rc.ReadRaw(ctx, "fresh")
	require.True(t, ok)
	require.JSONEq(t, `"ok"`, string(got))

	for i := 1; i <= 5; i++ {
		_, ok := rc.ReadRaw(ctx, fmt.Sprintf("old_%d", i))
		require.False(t, ok, "old_%d should be evicted", i)
	}
	for i := 6; i <= 7; i++ {
		_, ok := rc.ReadRaw(ctx, fmt.Sprintf("old_%d", i))
		require.True(t, ok, "old_%d should survive", i)
	}
	require.Equal(t, 5.0, counterValue(t, reg, "reader_cache_evictions_total"))
}

func TestRecordCache_WriteDroppedSilentlyWhenRetryFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memstore.New(0), failSets: 2}
	rc := newRecords(store, newClock(1_000))

	require.NotPanics(t, func() { rc.WriteRaw(ctx, "k", []byte(`1`), time.Minute) })
	require.Equal(t, 2, store.setCalls())
	_, ok := rc.ReadRaw(ctx, "k")
	require.False(t, ok)
}

func TestRecordCache_WriteEvictsAgainstRealQuota(t *testing.T) {
	ctx := context.Background()
	clock := newClock(0)
	store := memstore.New(600)
	rc := newRecords(store, clock)

	for i := 0; i < 50; i++ {
		clock.Set(int64(100 + i))
		rc.WriteRaw(ctx, fmt.Sprintf("k%02d", i), []byte(`"0123456789"`), time.Hour)
	}

	require.LessOrEqual(t, store.Used(), int64(600))
	_, ok := rc.ReadRaw(ctx, "k49")
	require.True(t, ok, "latest write survives")
	_, ok = rc.ReadRaw(ctx, "k00")
	require.False(t, ok, "oldest write was evicted")
}

func TestRecordCache_MalformedEntryIsDeleted(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)
	rc := newRecords(store, newClock(1_000))
	require.NoError(t, store.Set(ctx, cache.DefaultRecordPrefix+"bad", []byte("{not json")))

	_, ok := rc.ReadRaw(ctx, "bad")
	require.False(t, ok)
	_, err := store.Get(ctx, cache.DefaultRecordPrefix+"bad")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTyped_UndecodableValueIsDeleted(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(0)
	rc := newRecords(store, newClock(1_000))
	rc.WriteRaw(ctx, "k", []byte(`"a string"`), time.Hour)

	_, ok := cache.NewTyped[int](rc).Read(ctx, "k")
	require.False(t, ok)
	_, err := store.Get(ctx, cache.DefaultRecordPrefix+"k")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
