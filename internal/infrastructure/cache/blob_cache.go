package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBlobTTL         = 24 * time.Hour
	DefaultMaxBlobItemSize = 1 << 20
	DefaultSoftKeyLimit    = 200
)

// Fetch results recorded in metrics.
const (
	fetchStored     = "stored"
	fetchNoContent  = "no_content"
	fetchTooLarge   = "too_large"
	fetchFailed     = "error"
	fetchNotWritten = "dropped"
)

// BlobCacheConfig configures a BlobCache.
type BlobCacheConfig struct {
	Name   string
	Prefix string
	TTL    time.Duration
	// MaxItemSize is the largest payload, in bytes, that is ever persisted.
	MaxItemSize int
	EvictCount  int
	// SoftKeyLimit triggers proactive eviction when the store holds at least this many
	// keys before a write. Zero disables it.
	SoftKeyLimit int
	// Endpoint maps an entity id to its live image endpoint.
	Endpoint func(id int64) string
	// DefaultURL is served for entities whose source reported no content.
	DefaultURL string
	Now        func() time.Time
}

// Descriptor is the image reference returned by BlobCache reads.
type Descriptor = ports.ImageDescriptor

// BlobCache caches binary payloads keyed by numeric entity id. Reads never block on the
// network: a miss returns the live endpoint and populates the cache in the background.
// Concurrent misses for the same id share one fetch.
type BlobCache struct {
	store   ports.KeyValueStore
	source  ports.BlobSource
	cfg     BlobCacheConfig
	logger  *logrus.Logger
	metrics *Metrics

	group    singleflight.Group
	inflight sync.WaitGroup
}

// NewBlobCache creates a blob cache on store. cfg.Prefix and cfg.Endpoint are required.
func NewBlobCache(store ports.KeyValueStore, source ports.BlobSource, cfg BlobCacheConfig, logger *logrus.Logger, metrics *Metrics) (*BlobCache, error) {
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("blob cache prefix is required")
	}
	if cfg.Endpoint == nil {
		return nil, fmt.Errorf("blob cache endpoint mapping is required")
	}
	if cfg.Name == "" {
		cfg.Name = "blobs"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultBlobTTL
	}
	if cfg.MaxItemSize <= 0 {
		cfg.MaxItemSize = DefaultMaxBlobItemSize
	}
	if cfg.EvictCount <= 0 {
		cfg.EvictCount = DefaultEvictCount
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BlobCache{
		store:   store,
		source:  source,
		cfg:     cfg,
		logger:  orDiscard(logger),
		metrics: metrics,
	}, nil
}

// GetURLOrTrigger returns the cached blob as a data URI when a fresh entry exists.
// Otherwise it returns the live endpoint and starts a background fetch that populates
// the cache for the next read.
func (c *BlobCache) GetURLOrTrigger(ctx context.Context, id int64) Descriptor {
	if d, ok := c.Lookup(ctx, id); ok {
		return d
	}
	endpoint := c.cfg.Endpoint(id)
	c.trigger(ctx, id, endpoint)
	return Descriptor{URL: endpoint}
}

// Lookup returns the cached descriptor for id without touching the network. Stale and
// malformed entries are deleted.
func (c *BlobCache) Lookup(ctx context.Context, id int64) (Descriptor, bool) {
	key := c.key(id)
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "id": id, "error": err}).Warn("cache read failed")
		}
		c.metrics.miss(c.cfg.Name)
		return Descriptor{}, false
	}

	e, err := decodeBlobEntry(raw)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "id": id, "error": err}).Warn("dropping malformed cache entry")
		_ = c.store.Delete(ctx, key)
		c.metrics.miss(c.cfg.Name)
		return Descriptor{}, false
	}
	if e.expired(c.cfg.Now()) {
		_ = c.store.Delete(ctx, key)
		c.metrics.miss(c.cfg.Name)
		return Descriptor{}, false
	}

	c.metrics.hit(c.cfg.Name)
	if e.IsDefault {
		return Descriptor{URL: c.cfg.DefaultURL, Cached: true, Default: true}, true
	}
	return Descriptor{URL: dataURI(e.ContentType, e.Data), Cached: true}, true
}

// FetchAndCache fetches the blob behind endpoint and stores it under id. Payloads larger
// than MaxItemSize are not stored. A no-content answer stores a default marker so repeat
// reads skip the network. Source failures leave the cache untouched and are returned
// wrapped in ports.ErrSourceFetchFailed.
func (c *BlobCache) FetchAndCache(ctx context.Context, id int64, endpoint string) error {
	blob, err := c.source.FetchBlob(ctx, endpoint)
	if errors.Is(err, ports.ErrNoContent) {
		c.metrics.fetched(c.cfg.Name, fetchNoContent)
		c.put(ctx, id, blobEntry{entryHeader: newHeader(c.cfg.Now(), c.cfg.TTL), IsDefault: true})
		return nil
	}
	if err != nil {
		c.metrics.fetched(c.cfg.Name, fetchFailed)
		return fmt.Errorf("%w: %s: %w", ports.ErrSourceFetchFailed, endpoint, err)
	}

	size := len(blob.Data)
	if size > c.cfg.MaxItemSize {
		c.metrics.fetched(c.cfg.Name, fetchTooLarge)
		c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "id": id, "size": size, "limit": c.cfg.MaxItemSize}).Debug("blob too large to cache")
		return nil
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(blob.Data)
	}
	if c.put(ctx, id, blobEntry{
		entryHeader: newHeader(c.cfg.Now(), c.cfg.TTL),
		Data:        blob.Data,
		ContentType: contentType,
		SizeBytes:   size,
	}) {
		c.metrics.fetched(c.cfg.Name, fetchStored)
	} else {
		c.metrics.fetched(c.cfg.Name, fetchNotWritten)
	}
	return nil
}

// Invalidate deletes the cached blob for id.
func (c *BlobCache) Invalidate(ctx context.Context, id int64) {
	if err := c.store.Delete(ctx, c.key(id)); err != nil {
		c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "id": id, "error": err}).Warn("cache invalidation failed")
		return
	}
	c.metrics.invalidated(c.cfg.Name, 1)
}

// InvalidateAll clears the blob namespace.
func (c *BlobCache) InvalidateAll(ctx context.Context) int {
	n, err := deleteMatching(ctx, c.store, c.cfg.Prefix, func(string) bool { return true })
	if err != nil {
		c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "error": err}).Warn("cache invalidation incomplete")
	}
	c.metrics.invalidated(c.cfg.Name, n)
	return n
}

// EvictOldest deletes the n blobs with the oldest storedAt.
func (c *BlobCache) EvictOldest(ctx context.Context, n int) int {
	evicted, err := evictOldest(ctx, c.store, c.cfg.Prefix, n)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "error": err}).Warn("cache eviction incomplete")
	}
	c.metrics.evicted(c.cfg.Name, evicted)
	return evicted
}

// Wait blocks until every background fetch started so far has finished.
func (c *BlobCache) Wait() {
	c.inflight.Wait()
}

// trigger starts a background fetch for id unless one is already running. The fetch is
// detached from ctx cancellation; timeouts belong to the BlobSource transport.
func (c *BlobCache) trigger(ctx context.Context, id int64, endpoint string) {
	bg := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	ch := c.group.DoChan(c.key(id), func() (any, error) {
		err := c.FetchAndCache(bg, id, endpoint)
		if err != nil {
			c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "id": id, "error": err}).Debug("background blob fetch failed")
		}
		return nil, err
	})
	go func() {
		defer c.inflight.Done()
		<-ch
	}()
}

// put persists e, evicting proactively above the soft key limit and reactively when the
// store is full. It reports whether the entry was written.
func (c *BlobCache) put(ctx context.Context, id int64, e blobEntry) bool {
	b, err := json.Marshal(e)
	if err != nil {
		c.dropWrite(id, dropEncode, err)
		return false
	}

	if c.cfg.SoftKeyLimit > 0 {
		if keys, err := c.store.Keys(ctx); err == nil && len(keys) >= c.cfg.SoftKeyLimit {
			c.EvictOldest(ctx, c.cfg.EvictCount)
		}
	}

	_, err = setWithEviction(ctx, c.store, c.key(id), b, func() int {
		return c.EvictOldest(ctx, c.cfg.EvictCount)
	})
	switch {
	case err == nil:
		c.metrics.write(c.cfg.Name)
		return true
	case errors.Is(err, ports.ErrCapacityExceeded):
		c.dropWrite(id, dropCapacity, err)
	default:
		c.dropWrite(id, dropStore, err)
	}
	return false
}

func (c *BlobCache) dropWrite(id int64, reason string, err error) {
	c.metrics.drop(c.cfg.Name, reason)
	c.logger.WithFields(logrus.Fields{"cache": c.cfg.Name, "id": id, "reason": reason, "error": err}).Warn("cache write dropped")
}

func (c *BlobCache) key(id int64) string {
	return c.cfg.Prefix + strconv.FormatInt(id, 10)
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
