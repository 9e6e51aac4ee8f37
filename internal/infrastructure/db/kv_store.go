package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
)

// quotaLockID serializes quota checks across connections.
const quotaLockID = 0x6b765f71756f7461

// KVStore implements ports.KeyValueStore on the kv_entries table with a byte quota
// counted as len(key)+len(value) per row.
type KVStore struct {
	db       *Database
	maxBytes int64
}

// NewKVStore creates a Postgres-backed key-value store. maxBytes <= 0 means unlimited.
func NewKVStore(database *Database, maxBytes int64) *KVStore {
	return &KVStore{db: database, maxBytes: maxBytes}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.DB.GetContext(ctx, &value, `SELECT value FROM kv_entries WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv entry: %w", err)
	}
	return value, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	size := int64(len(key) + len(value))

	tx, err := s.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin kv transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.maxBytes > 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(quotaLockID)); err != nil {
			return fmt.Errorf("failed to lock kv quota: %w", err)
		}
		var used int64
		if err := tx.GetContext(ctx, &used, `SELECT COALESCE(SUM(size_bytes), 0) FROM kv_entries WHERE key <> $1`, key); err != nil {
			return fmt.Errorf("failed to read kv usage: %w", err)
		}
		if used+size > s.maxBytes {
			return ports.ErrCapacityExceeded
		}
	}

	query := `
		INSERT INTO kv_entries (key, value, size_bytes, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, size_bytes = EXCLUDED.size_bytes, updated_at = NOW()`
	if _, err := tx.ExecContext(ctx, query, key, value, size); err != nil {
		return fmt.Errorf("failed to upsert kv entry: %w", err)
	}
	return tx.Commit()
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}

func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.DB.SelectContext(ctx, &keys, `SELECT key FROM kv_entries ORDER BY key`); err != nil {
		return nil, fmt.Errorf("failed to list kv keys: %w", err)
	}
	return keys, nil
}

var _ ports.KeyValueStore = (*KVStore)(nil)
