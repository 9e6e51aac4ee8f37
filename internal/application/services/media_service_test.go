package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/novel-reader/go/internal/application/services"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/memstore"
)

func TestMediaService_StaleWhileRevalidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(0))
	media := impl.NewMediaService(f.avatars, f.covers)

	d := media.AvatarURL(ctx, 4)
	require.Equal(t, "/users/4/avatar", d.URL)
	require.False(t, d.Cached)

	d = media.CoverURL(ctx, 4)
	require.Equal(t, "/novels/4/cover", d.URL)
	media.Wait()

	d = media.AvatarURL(ctx, 4)
	require.True(t, d.Cached)
	require.Equal(t, "data:image/png;base64,aW1n", d.URL)
	require.True(t, media.CoverURL(ctx, 4).Cached)
}
