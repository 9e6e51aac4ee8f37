package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/catalog"
	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
)

// DataSourceMock is a lightweight mock for DataSource that records every call.
type DataSourceMock struct {
	FetchFn func(ctx context.Context, desc ports.ResourceDescriptor) (json.RawMessage, error)

	mu    sync.Mutex
	Calls []ports.ResourceDescriptor
}

func (m *DataSourceMock) Fetch(ctx context.Context, desc ports.ResourceDescriptor) (json.RawMessage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, desc)
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, desc)
	}
	return nil, fmt.Errorf("not found")
}

// CallCount returns how many fetches reached the source.
func (m *DataSourceMock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MutatorMock is a lightweight mock for Mutator.
type MutatorMock struct {
	MutateFn func(ctx context.Context, req ports.MutationRequest) (json.RawMessage, error)
}

func (m *MutatorMock) Mutate(ctx context.Context, req ports.MutationRequest) (json.RawMessage, error) {
	if m.MutateFn != nil {
		return m.MutateFn(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

// BlobSourceMock is a lightweight mock for BlobSource.
type BlobSourceMock struct {
	FetchBlobFn func(ctx context.Context, endpoint string) (*ports.Blob, error)
}

func (m *BlobSourceMock) FetchBlob(ctx context.Context, endpoint string) (*ports.Blob, error) {
	if m.FetchBlobFn != nil {
		return m.FetchBlobFn(ctx, endpoint)
	}
	return nil, ports.ErrNoContent
}

// CatalogServiceMock is a lightweight mock for CatalogService.
type CatalogServiceMock struct {
	GetNovelFn        func(ctx context.Context, id int64) (*catalog.Novel, error)
	ListNovelsFn      func(ctx context.Context, q catalog.NovelQuery) (*catalog.NovelPage, error)
	ListGenresFn      func(ctx context.Context) ([]catalog.Genre, error)
	PopularThisWeekFn func(ctx context.Context) ([]catalog.Novel, error)
	GetUserFn         func(ctx context.Context, id int64) (*catalog.User, error)
	CreateNovelFn     func(ctx context.Context, req *catalog.CreateNovelRequest) (*catalog.Novel, error)
	UpdateNovelFn     func(ctx context.Context, id int64, req *catalog.UpdateNovelRequest) (*catalog.Novel, error)
	DeleteNovelFn     func(ctx context.Context, id int64) error
	UpdateUserFn      func(ctx context.Context, id int64, req *catalog.UpdateUserRequest) (*catalog.User, error)
}

func (m *CatalogServiceMock) GetNovel(ctx context.Context, id int64) (*catalog.Novel, error) {
	if m.GetNovelFn != nil {
		return m.GetNovelFn(ctx, id)
	}
	return nil, fmt.Errorf("not found")
}
func (m *CatalogServiceMock) ListNovels(ctx context.Context, q catalog.NovelQuery) (*catalog.NovelPage, error) {
	if m.ListNovelsFn != nil {
		return m.ListNovelsFn(ctx, q)
	}
	return &catalog.NovelPage{}, nil
}
func (m *CatalogServiceMock) ListGenres(ctx context.Context) ([]catalog.Genre, error) {
	if m.ListGenresFn != nil {
		return m.ListGenresFn(ctx)
	}
	return nil, nil
}
func (m *CatalogServiceMock) PopularThisWeek(ctx context.Context) ([]catalog.Novel, error) {
	if m.PopularThisWeekFn != nil {
		return m.PopularThisWeekFn(ctx)
	}
	return nil, nil
}
func (m *CatalogServiceMock) GetUser(ctx context.Context, id int64) (*catalog.User, error) {
	if m.GetUserFn != nil {
		return m.GetUserFn(ctx, id)
	}
	return nil, fmt.Errorf("not found")
}
func (m *CatalogServiceMock) CreateNovel(ctx context.Context, req *catalog.CreateNovelRequest) (*catalog.Novel, error) {
	if m.CreateNovelFn != nil {
		return m.CreateNovelFn(ctx, req)
	}
	return &catalog.Novel{}, nil
}
func (m *CatalogServiceMock) UpdateNovel(ctx context.Context, id int64, req *catalog.UpdateNovelRequest) (*catalog.Novel, error) {
	if m.UpdateNovelFn != nil {
		return m.UpdateNovelFn(ctx, id, req)
	}
	return &catalog.Novel{ID: id}, nil
}
func (m *CatalogServiceMock) DeleteNovel(ctx context.Context, id int64) error {
	if m.DeleteNovelFn != nil {
		return m.DeleteNovelFn(ctx, id)
	}
	return nil
}
func (m *CatalogServiceMock) UpdateUser(ctx context.Context, id int64, req *catalog.UpdateUserRequest) (*catalog.User, error) {
	if m.UpdateUserFn != nil {
		return m.UpdateUserFn(ctx, id, req)
	}
	return &catalog.User{ID: id}, nil
}

// MediaServiceMock is a lightweight mock for MediaService.
type MediaServiceMock struct {
	AvatarURLFn func(ctx context.Context, userID int64) ports.ImageDescriptor
	CoverURLFn  func(ctx context.Context, novelID int64) ports.ImageDescriptor
}

func (m *MediaServiceMock) AvatarURL(ctx context.Context, userID int64) ports.ImageDescriptor {
	if m.AvatarURLFn != nil {
		return m.AvatarURLFn(ctx, userID)
	}
	return ports.ImageDescriptor{}
}
func (m *MediaServiceMock) CoverURL(ctx context.Context, novelID int64) ports.ImageDescriptor {
	if m.CoverURLFn != nil {
		return m.CoverURLFn(ctx, novelID)
	}
	return ports.ImageDescriptor{}
}

// CacheAdminMock records handled events and invalidation calls.
type CacheAdminMock struct {
	mu       sync.Mutex
	Events   []event.Mutation
	Patterns []string
	Cleared  int
}

func (m *CacheAdminMock) Handle(ctx context.Context, ev event.Mutation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
}
func (m *CacheAdminMock) InvalidatePattern(ctx context.Context, pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Patterns = append(m.Patterns, pattern)
	return 1
}
func (m *CacheAdminMock) InvalidateAll(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cleared++
	return 3
}

var (
	_ ports.DataSource     = (*DataSourceMock)(nil)
	_ ports.Mutator        = (*MutatorMock)(nil)
	_ ports.BlobSource     = (*BlobSourceMock)(nil)
	_ ports.CatalogService = (*CatalogServiceMock)(nil)
	_ ports.MediaService   = (*MediaServiceMock)(nil)
	_ ports.CacheAdmin     = (*CacheAdminMock)(nil)
)
