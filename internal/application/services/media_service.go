package services

import (
	"context"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/cache"
)

// MediaService hands out avatar and cover references without blocking rendering.
type MediaService struct {
	avatars *cache.BlobCache
	covers  *cache.BlobCache
}

func NewMediaService(avatars, covers *cache.BlobCache) *MediaService {
	return &MediaService{avatars: avatars, covers: covers}
}

func (s *MediaService) AvatarURL(ctx context.Context, userID int64) ports.ImageDescriptor {
	return s.avatars.GetURLOrTrigger(ctx, userID)
}

func (s *MediaService) CoverURL(ctx context.Context, novelID int64) ports.ImageDescriptor {
	return s.covers.GetURLOrTrigger(ctx, novelID)
}

// Wait blocks until background image fetches have finished.
func (s *MediaService) Wait() {
	s.avatars.Wait()
	s.covers.Wait()
}

var _ ports.MediaService = (*MediaService)(nil)
