package health_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/health"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/memstore"
)

type brokenStore struct{ ports.KeyValueStore }

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreHealthChecker(t *testing.T) {
	ctx := context.Background()

	hc := health.NewStoreHealthChecker("memory", memstore.New(0))
	require.Equal(t, "memory", hc.Name())
	require.NoError(t, hc.Check(ctx))

	require.Error(t, health.NewStoreHealthChecker("broken", brokenStore{}).Check(ctx))
}

func TestRedisHealthChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hc := health.NewRedisHealthChecker(client)
	require.NoError(t, hc.Check(context.Background()))

	mr.Close()
	require.Error(t, hc.Check(context.Background()))
}
