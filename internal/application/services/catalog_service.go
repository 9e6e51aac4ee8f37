package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/catalog"
	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CatalogService serves catalog data cache-first: a hit never touches the network, a
// miss fetches from the DataSource and stores the result. Mutations publish an event
// that invalidates affected keys before the call returns.
type CatalogService struct {
	source   ports.DataSource
	mutator  ports.Mutator
	notifier ports.MutationNotifier
	coord    *CacheCoordinator
	logger   *logrus.Logger

	novels  cache.Typed[catalog.Novel]
	pages   cache.Typed[catalog.NovelPage]
	genres  cache.Typed[[]catalog.Genre]
	popular cache.Typed[[]catalog.Novel]
	users   cache.Typed[catalog.User]

	// coalesces concurrent misses for the same key
	sf singleflight.Group
}

func NewCatalogService(source ports.DataSource, mutator ports.Mutator, notifier ports.MutationNotifier, records *cache.RecordCache, coord *CacheCoordinator, logger *logrus.Logger) *CatalogService {
	return &CatalogService{
		source:   source,
		mutator:  mutator,
		notifier: notifier,
		coord:    coord,
		logger:   logger,
		novels:   cache.NewTyped[catalog.Novel](records),
		pages:    cache.NewTyped[catalog.NovelPage](records),
		genres:   cache.NewTyped[[]catalog.Genre](records),
		popular:  cache.NewTyped[[]catalog.Novel](records),
		users:    cache.NewTyped[catalog.User](records),
	}
}

func (s *CatalogService) GetNovel(ctx context.Context, id int64) (*catalog.Novel, error) {
	n, err := fetchThrough(ctx, s, s.novels, event.KindNovel, id, nil)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *CatalogService) ListNovels(ctx context.Context, q catalog.NovelQuery) (*catalog.NovelPage, error) {
	page, err := fetchThrough(ctx, s, s.pages, event.KindNovels, 0, q.CacheParams())
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *CatalogService) ListGenres(ctx context.Context) ([]catalog.Genre, error) {
	return fetchThrough(ctx, s, s.genres, event.KindGenres, 0, nil)
}

func (s *CatalogService) PopularThisWeek(ctx context.Context) ([]catalog.Novel, error) {
	return fetchThrough(ctx, s, s.popular, event.KindPopular, 0, map[string]string{"period": "week"})
}

func (s *CatalogService) GetUser(ctx context.Context, id int64) (*catalog.User, error) {
	u, err := fetchThrough(ctx, s, s.users, event.KindUser, id, nil)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *CatalogService) CreateNovel(ctx context.Context, req *catalog.CreateNovelRequest) (*catalog.Novel, error) {
	var n catalog.Novel
	if err := s.mutate(ctx, ports.MutationRequest{Action: event.ActionCreate, Kind: event.KindNovel, Body: req}, &n); err != nil {
		return nil, err
	}
	s.notifier.Publish(ctx, event.NewMutation(event.KindNovel, n.ID, event.ActionCreate))
	s.novels.Write(ctx, s.coord.KeyFor(event.KindNovel, n.ID, nil), n, s.coord.TTLFor(event.KindNovel))
	return &n, nil
}

func (s *CatalogService) UpdateNovel(ctx context.Context, id int64, req *catalog.UpdateNovelRequest) (*catalog.Novel, error) {
	var n catalog.Novel
	err := s.mutate(ctx, ports.MutationRequest{Action: event.ActionUpdate, Kind: event.KindNovel, ID: strconv.FormatInt(id, 10), Body: req}, &n)
	if err != nil {
		return nil, err
	}
	ev := event.NewMutation(event.KindNovel, id, event.ActionUpdate)
	ev.ImageChanged = req.CoverChanged
	s.notifier.Publish(ctx, ev)
	return &n, nil
}

func (s *CatalogService) DeleteNovel(ctx context.Context, id int64) error {
	err := s.mutate(ctx, ports.MutationRequest{Action: event.ActionDelete, Kind: event.KindNovel, ID: strconv.FormatInt(id, 10)}, nil)
	if err != nil {
		return err
	}
	s.notifier.Publish(ctx, event.NewMutation(event.KindNovel, id, event.ActionDelete))
	return nil
}

func (s *CatalogService) UpdateUser(ctx context.Context, id int64, req *catalog.UpdateUserRequest) (*catalog.User, error) {
	var u catalog.User
	err := s.mutate(ctx, ports.MutationRequest{Action: event.ActionUpdate, Kind: event.KindUser, ID: strconv.FormatInt(id, 10), Body: req}, &u)
	if err != nil {
		return nil, err
	}
	ev := event.NewMutation(event.KindUser, id, event.ActionUpdate)
	ev.ImageChanged = req.AvatarChanged
	s.notifier.Publish(ctx, ev)
	return &u, nil
}

// mutate performs the remote call and decodes its response into out when out is not nil.
func (s *CatalogService) mutate(ctx context.Context, req ports.MutationRequest, out any) error {
	raw, err := s.mutator.Mutate(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ports.ErrSourceFetchFailed, req.Action, req.Kind, err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %w", ports.ErrSourceFetchFailed, req.Action, req.Kind, err)
	}
	return nil
}

// fetchThrough returns the cached value for a resource or fetches, caches and returns it.
func fetchThrough[T any](ctx context.Context, s *CatalogService, view cache.Typed[T], kind string, id int64, params map[string]string) (T, error) {
	key := s.coord.KeyFor(kind, id, params)
	if v, ok := view.Read(ctx, key); ok {
		return v, nil
	}

	// joined callers share this fetch; it outlives the caller that started it
	fetchCtx := context.WithoutCancel(ctx)
	res, err, _ := s.sf.Do(key, func() (any, error) {
		if v, ok := view.Read(fetchCtx, key); ok {
			return v, nil
		}
		desc := ports.ResourceDescriptor{Kind: kind, Params: params}
		if id != 0 {
			desc.ID = strconv.FormatInt(id, 10)
		}
		start := time.Now()
		raw, err := s.source.Fetch(fetchCtx, desc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ports.ErrSourceFetchFailed, key, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ports.ErrSourceFetchFailed, key, err)
		}
		s.logger.WithFields(logrus.Fields{"key": key, "duration": time.Since(start)}).Debug("Fetched from source")
		view.Write(fetchCtx, key, v, s.coord.TTLFor(kind))
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected type from singleflight result")
	}
	return v, nil
}

var _ ports.CatalogService = (*CatalogService)(nil)
