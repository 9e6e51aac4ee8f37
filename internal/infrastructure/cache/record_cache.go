package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRecordPrefix = "record:"
	DefaultRecordTTL    = 5 * time.Minute
	DefaultEvictCount   = 5
)

// RecordCacheConfig configures a RecordCache. Zero values fall back to the defaults.
type RecordCacheConfig struct {
	Name       string
	Prefix     string
	DefaultTTL time.Duration
	EvictCount int
	Now        func() time.Time
}

// RecordCache is a TTL cache of JSON records over a KeyValueStore. Every stored key is
// prefixed so that records form a namespace distinct from blobs.
//
// Caching is best-effort: write failures are logged and dropped, never returned.
type RecordCache struct {
	store   ports.KeyValueStore
	cfg     RecordCacheConfig
	logger  *logrus.Logger
	metrics *Metrics
}

// NewRecordCache creates a record cache on store.
func NewRecordCache(store ports.KeyValueStore, cfg RecordCacheConfig, logger *logrus.Logger, metrics *Metrics) *RecordCache {
	if cfg.Name == "" {
		cfg.Name = "records"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRecordPrefix
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultRecordTTL
	}
	if cfg.EvictCount <= 0 {
		cfg.EvictCount = DefaultEvictCount
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RecordCache{store: store, cfg: cfg, logger: orDiscard(logger), metrics: metrics}
}

// DefaultTTL returns the TTL used when a write passes ttl <= 0.
func (c *RecordCache) DefaultTTL() time.Duration { return c.cfg.DefaultTTL }

// ReadRaw returns the stored data iff the entry is present and fresh. Stale and
// malformed entries are deleted and reported as a miss.
func (c *RecordCache) ReadRaw(ctx context.Context, key string) (json.RawMessage, bool) {
	skey := c.cfg.Prefix + key
	raw, err := c.store.Get(ctx, skey)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "key": key, "error": err}).Warn("cache read failed")
		}
		c.metrics.miss(c.cfg.Name)
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		c.discard(ctx, key, err)
		c.metrics.miss(c.cfg.Name)
		return nil, false
	}
	if e.expired(c.cfg.Now()) {
		_ = c.store.Delete(ctx, skey)
		c.metrics.miss(c.cfg.Name)
		return nil, false
	}

	c.metrics.hit(c.cfg.Name)
	return e.Data, true
}

// WriteRaw stores data under key for ttl (DefaultTTL when ttl <= 0). When the store is
// full, the oldest records are evicted and the write is retried once; if that fails too
// the write is dropped.
func (c *RecordCache) WriteRaw(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	b, err := json.Marshal(entry{entryHeader: newHeader(c.cfg.Now(), ttl), Data: data})
	if err != nil {
		c.dropWrite(key, dropEncode, err)
		return
	}

	retried, err := setWithEviction(ctx, c.store, c.cfg.Prefix+key, b, func() int {
		return c.EvictOldest(ctx, c.cfg.EvictCount)
	})
	switch {
	case err == nil:
		c.metrics.write(c.cfg.Name)
		if retried {
			c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "key": key}).Debug("cache write succeeded after eviction")
		}
	case errors.Is(err, ports.ErrCapacityExceeded):
		c.dropWrite(key, dropCapacity, err)
	default:
		c.dropWrite(key, dropStore, err)
	}
}

// Invalidate deletes every record whose key contains pattern. An empty pattern is a no-op.
func (c *RecordCache) Invalidate(ctx context.Context, pattern string) int {
	if pattern == "" {
		return 0
	}
	return c.invalidate(ctx, func(k string) bool { return strings.Contains(k, pattern) })
}

// InvalidateMatching deletes every record whose key matches re.
func (c *RecordCache) InvalidateMatching(ctx context.Context, re *regexp.Regexp) int {
	if re == nil {
		return 0
	}
	return c.invalidate(ctx, re.MatchString)
}

// InvalidateAll clears the record namespace.
func (c *RecordCache) InvalidateAll(ctx context.Context) int {
	return c.invalidate(ctx, func(string) bool { return true })
}

// EvictOldest deletes the n records with the oldest storedAt.
func (c *RecordCache) EvictOldest(ctx context.Context, n int) int {
	evicted, err := evictOldest(ctx, c.store, c.cfg.Prefix, n)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "error": err}).Warn("cache eviction incomplete")
	}
	c.metrics.evicted(c.cfg.Name, evicted)
	return evicted
}

func (c *RecordCache) invalidate(ctx context.Context, match func(string) bool) int {
	n, err := deleteMatching(ctx, c.store, c.cfg.Prefix, match)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "error": err}).Warn("cache invalidation incomplete")
	}
	c.metrics.invalidated(c.cfg.Name, n)
	return n
}

// discard deletes an entry that cannot be decoded.
func (c *RecordCache) discard(ctx context.Context, key string, cause error) {
	c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "key": key, "error": cause}).Warn("dropping malformed cache entry")
	_ = c.store.Delete(ctx, c.cfg.Prefix+key)
}

func (c *RecordCache) dropWrite(key, reason string, err error) {
	c.metrics.drop(c.cfg.Name, reason)
	c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "key": key, "reason": reason, "error": err}).Warn("cache write dropped")
}

func orDiscard(logger *logrus.Logger) *logrus.Logger {
	if logger != nil {
		return logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
