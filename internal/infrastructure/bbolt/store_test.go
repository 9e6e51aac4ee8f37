package bbolt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "record:novel_1", []byte(`{"data":1}`)))
	require.NoError(t, store.Close())

	store, err = Open(path, 0)
	require.NoError(t, err)
	defer store.Close()

	v, err := store.Get(ctx, "record:novel_1")
	require.NoError(t, err)
	require.Equal(t, `{"data":1}`, string(v))
	require.Equal(t, int64(len("record:novel_1")+len(`{"data":1}`)), store.Used())
}

func TestStoreQuota(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), 20)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "a", make([]byte, 15)))
	require.ErrorIs(t, store.Set(ctx, "b", make([]byte, 5)), ports.ErrCapacityExceeded)
	require.NoError(t, store.Set(ctx, "a", make([]byte, 19)))
	require.Equal(t, int64(20), store.Used())

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	require.Equal(t, int64(0), store.Used())
	require.NoError(t, store.Set(ctx, "b", make([]byte, 5)))
}

func TestStoreGetMissingAndKeys(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, store.Set(ctx, "x", []byte("1")))
	require.NoError(t, store.Set(ctx, "y", []byte("2")))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, keys)
	require.NoError(t, store.Check(ctx))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", 0)
	require.Error(t, err)
}

func TestStoreQuotaHoldsUnderConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	const maxBytes = 200
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), maxBytes)
	require.NoError(t, err)
	defer store.Close()

	value := make([]byte, 30)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Set(ctx, fmt.Sprintf("k%02d", i), value)
			if err != nil && !errors.Is(err, ports.ErrCapacityExceeded) {
				t.Errorf("set k%02d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	var onDisk int64
	for _, k := range keys {
		v, err := store.Get(ctx, k)
		require.NoError(t, err)
		onDisk += int64(len(k) + len(v))
	}
	require.LessOrEqual(t, onDisk, int64(maxBytes))
	require.Equal(t, onDisk, store.Used())
	require.Len(t, keys, maxBytes/(3+30))
}
