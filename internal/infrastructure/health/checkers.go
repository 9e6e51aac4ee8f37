package health

import (
	"context"
	"errors"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	infraDB "github.com/avatarctic/novel-reader/go/internal/infrastructure/db"
	"github.com/go-redis/redis/v8"
)

// probeKey is never written; reading it exercises the store's read path.
const probeKey = "__health_probe__"

// dbHealthChecker wraps the database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.DB.PingContext(ctx) }

// redisHealthChecker wraps the redis client for health checks.
type redisHealthChecker struct{ client redis.UniversalClient }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// storeHealthChecker probes a key-value store with a read of a missing key.
type storeHealthChecker struct {
	name  string
	store ports.KeyValueStore
}

func (s *storeHealthChecker) Name() string { return s.name }

func (s *storeHealthChecker) Check(ctx context.Context) error {
	_, err := s.store.Get(ctx, probeKey)
	if err == nil || errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	return err
}

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client redis.UniversalClient) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// NewStoreHealthChecker creates a health checker for any key-value store backend.
func NewStoreHealthChecker(name string, store ports.KeyValueStore) ports.HealthChecker {
	return &storeHealthChecker{name: name, store: store}
}
