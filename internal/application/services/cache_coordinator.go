package services

import (
	"context"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/cache"
	"github.com/sirupsen/logrus"
)

// CachePolicy holds the TTL chosen for each kind of data.
type CachePolicy struct {
	ListTTL      time.Duration
	EntityTTL    time.Duration
	TaxonomyTTL  time.Duration
	AggregateTTL time.Duration
}

// DefaultCachePolicy returns the stock TTLs: lists 5m, entities 10m, taxonomy 1h,
// aggregates 15m.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{
		ListTTL:      5 * time.Minute,
		EntityTTL:    10 * time.Minute,
		TaxonomyTTL:  time.Hour,
		AggregateTTL: 15 * time.Minute,
	}
}

// CacheCoordinator owns key derivation, TTL policy and invalidation for both cache tiers.
type CacheCoordinator struct {
	records *cache.RecordCache
	avatars *cache.BlobCache
	covers  *cache.BlobCache
	policy  CachePolicy
	logger  *logrus.Logger
}

func NewCacheCoordinator(records *cache.RecordCache, avatars, covers *cache.BlobCache, policy CachePolicy, logger *logrus.Logger) *CacheCoordinator {
	return &CacheCoordinator{
		records: records,
		avatars: avatars,
		covers:  covers,
		policy:  policy,
		logger:  logger,
	}
}

// KeyFor returns the cache key of a resource. id 0 means a collection or singleton.
func (c *CacheCoordinator) KeyFor(kind string, id int64, params map[string]string) string {
	if id == 0 {
		return cache.Key(kind, "", params)
	}
	return cache.EntityKey(kind, id, params)
}

// TTLFor returns the TTL for a kind of data; 0 lets the record cache apply its default.
func (c *CacheCoordinator) TTLFor(kind string) time.Duration {
	switch kind {
	case event.KindNovels:
		return c.policy.ListTTL
	case event.KindNovel, event.KindUser:
		return c.policy.EntityTTL
	case event.KindGenres:
		return c.policy.TaxonomyTTL
	case event.KindPopular:
		return c.policy.AggregateTTL
	}
	return 0
}

// Handle invalidates everything a mutation may have made wrong: the entity's own keys,
// every list that could include it, aggregates, and its image when replaced or deleted.
func (c *CacheCoordinator) Handle(ctx context.Context, ev event.Mutation) {
	removed := 0
	switch ev.Kind {
	case event.KindNovel:
		if ev.ResourceID > 0 {
			removed += c.records.InvalidateMatching(ctx, cache.EntityPattern(event.KindNovel, ev.ResourceID))
			if ev.ImageChanged || ev.Action == event.ActionDelete {
				c.covers.Invalidate(ctx, ev.ResourceID)
			}
		}
		removed += c.records.InvalidateMatching(ctx, cache.KindPattern(event.KindNovels))
		removed += c.records.InvalidateMatching(ctx, cache.KindPattern(event.KindPopular))
	case event.KindGenre:
		// entries and lists embed genre names
		removed += c.records.InvalidateMatching(ctx, cache.KindPattern(event.KindGenres))
		removed += c.records.InvalidateMatching(ctx, cache.KindPattern(event.KindNovels))
		removed += c.records.InvalidateMatching(ctx, cache.KindPattern(event.KindNovel))
		removed += c.records.InvalidateMatching(ctx, cache.KindPattern(event.KindPopular))
	case event.KindUser:
		if ev.ResourceID > 0 {
			removed += c.records.InvalidateMatching(ctx, cache.EntityPattern(event.KindUser, ev.ResourceID))
			if ev.ImageChanged || ev.Action == event.ActionDelete {
				c.avatars.Invalidate(ctx, ev.ResourceID)
			}
		}
	default:
		c.logger.WithField("kind", ev.Kind).Warn("Mutation for unknown resource kind ignored")
		return
	}

	c.logger.WithFields(logrus.Fields{
		"event_id":    ev.ID,
		"kind":        ev.Kind,
		"resource_id": ev.ResourceID,
		"action":      ev.Action,
		"removed":     removed,
	}).Debug("Cache invalidated after mutation")
}

// InvalidatePattern drops every record whose key contains pattern.
func (c *CacheCoordinator) InvalidatePattern(ctx context.Context, pattern string) int {
	return c.records.Invalidate(ctx, pattern)
}

// InvalidateAll clears records and both blob namespaces.
func (c *CacheCoordinator) InvalidateAll(ctx context.Context) int {
	n := c.records.InvalidateAll(ctx)
	n += c.avatars.InvalidateAll(ctx)
	n += c.covers.InvalidateAll(ctx)
	c.logger.WithField("removed", n).Info("Cache cleared")
	return n
}

var _ ports.CacheAdmin = (*CacheCoordinator)(nil)
