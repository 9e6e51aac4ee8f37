package db_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/novel-reader/go/configs"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/db"
)

// Requires a disposable Postgres database, e.g.
// KV_POSTGRES_DSN="host=localhost user=postgres password=postgres dbname=reader_test sslmode=disable"
func openTestDatabase(t *testing.T) *db.Database {
	t.Helper()
	dsn := os.Getenv("KV_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KV_POSTGRES_DSN not set")
	}
	database, err := db.NewDatabaseWithConfig(&configs.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	_, err = database.DB.Exec(`TRUNCATE kv_entries`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestKVStore_RoundTripAndQuota(t *testing.T) {
	ctx := context.Background()
	store := db.NewKVStore(openTestDatabase(t), 20)

	require.NoError(t, store.Set(ctx, "a", make([]byte, 15)))
	require.ErrorIs(t, store.Set(ctx, "b", make([]byte, 5)), ports.ErrCapacityExceeded)
	require.NoError(t, store.Set(ctx, "a", make([]byte, 19)))

	v, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Len(t, v, 19)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	require.ErrorIs(t, err, ports.ErrNotFound)
}
