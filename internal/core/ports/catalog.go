package ports

import (
	"context"
	"errors"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/catalog"
)

// ErrResourceNotFound is returned by a DataSource when the remote resource does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// ImageDescriptor is an image reference usable without blocking: an inline data URI for a
// cached blob, or the live endpoint while the cache is being populated.
type ImageDescriptor struct {
	URL     string `json:"url"`
	Cached  bool   `json:"cached"`
	Default bool   `json:"default,omitempty"`
}

// CatalogService serves catalog reads through the record cache and performs mutations
// that invalidate it.
type CatalogService interface {
	GetNovel(ctx context.Context, id int64) (*catalog.Novel, error)
	ListNovels(ctx context.Context, q catalog.NovelQuery) (*catalog.NovelPage, error)
	ListGenres(ctx context.Context) ([]catalog.Genre, error)
	PopularThisWeek(ctx context.Context) ([]catalog.Novel, error)
	GetUser(ctx context.Context, id int64) (*catalog.User, error)

	CreateNovel(ctx context.Context, req *catalog.CreateNovelRequest) (*catalog.Novel, error)
	UpdateNovel(ctx context.Context, id int64, req *catalog.UpdateNovelRequest) (*catalog.Novel, error)
	DeleteNovel(ctx context.Context, id int64) error
	UpdateUser(ctx context.Context, id int64, req *catalog.UpdateUserRequest) (*catalog.User, error)
}

// MediaService resolves image references without blocking on the network.
type MediaService interface {
	AvatarURL(ctx context.Context, userID int64) ImageDescriptor
	CoverURL(ctx context.Context, novelID int64) ImageDescriptor
}

// CacheAdmin exposes the coordinator hooks used by push webhooks and maintenance.
type CacheAdmin interface {
	MutationHandler
	InvalidatePattern(ctx context.Context, pattern string) int
	InvalidateAll(ctx context.Context) int
}
