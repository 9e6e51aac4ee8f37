package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/novel-reader/go/internal/application/services"
	"github.com/avatarctic/novel-reader/go/internal/core/domain/catalog"
	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/httpserver"
	tmocks "github.com/avatarctic/novel-reader/go/test/mocks"
)

type testServer struct {
	srv     *httpserver.Server
	catalog *tmocks.CatalogServiceMock
	media   *tmocks.MediaServiceMock
	cache   *tmocks.CacheAdminMock
	reg     *prometheus.Registry
}

type failingChecker struct{}

func (failingChecker) Name() string                    { return "store" }
func (failingChecker) Check(ctx context.Context) error { return errors.New("down") }

func newTestServer(t *testing.T, checkers ...ports.HealthChecker) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	ts := &testServer{
		catalog: &tmocks.CatalogServiceMock{},
		media:   &tmocks.MediaServiceMock{},
		cache:   &tmocks.CacheAdminMock{},
		reg:     prometheus.NewRegistry(),
	}
	bus := services.NewMutationBus(logger)
	bus.Subscribe(ts.cache)
	ts.srv = httpserver.NewServer(&httpserver.ServerConfig{Host: "127.0.0.1", Port: "0"}, logger, httpserver.ServerDeps{
		Catalog:        ts.catalog,
		Media:          ts.media,
		Cache:          ts.cache,
		Events:         bus,
		HealthCheckers: checkers,
		Registry:       ts.reg,
	})
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ts.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestGetNovel(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.GetNovelFn = func(ctx context.Context, id int64) (*catalog.Novel, error) {
		switch id {
		case 5:
			return &catalog.Novel{ID: 5, Title: "Five"}, nil
		case 6:
			return nil, fmt.Errorf("%w: novel_6: %w", ports.ErrSourceFetchFailed, ports.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("%w: novel_%d: timeout", ports.ErrSourceFetchFailed, id)
	}

	rec := ts.do(http.MethodGet, "/api/v1/novels/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":5,"title":"Five","author":"","chapters":0,"rating":0,"views":0,"updated_at":"0001-01-01T00:00:00Z"}`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/novels/6", "").Code)
	require.Equal(t, http.StatusBadGateway, ts.do(http.MethodGet, "/api/v1/novels/7", "").Code)
	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/novels/abc", "").Code)
}

func TestListNovels_ParsesQuery(t *testing.T) {
	ts := newTestServer(t)
	var got catalog.NovelQuery
	ts.catalog.ListNovelsFn = func(ctx context.Context, q catalog.NovelQuery) (*catalog.NovelPage, error) {
		got = q
		return &catalog.NovelPage{Page: q.Page}, nil
	}

	rec := ts.do(http.MethodGet, "/api/v1/novels?q=dragon&genre=fantasy,romance&genre=drama&tag=op-mc&page=2&per_page=10&sort=rating", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, catalog.NovelQuery{
		Search: "dragon", Genres: []string{"fantasy", "romance", "drama"}, Tags: []string{"op-mc"},
		Sort: "rating", Page: 2, PerPage: 10,
	}, got)

	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/novels?page=x", "").Code)
	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/novels?per_page=500", "").Code)
}

func TestPopularAndGenres(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.PopularThisWeekFn = func(ctx context.Context) ([]catalog.Novel, error) {
		return []catalog.Novel{{ID: 3}}, nil
	}
	ts.catalog.ListGenresFn = func(ctx context.Context) ([]catalog.Genre, error) {
		return []catalog.Genre{{ID: 1, Slug: "fantasy", Name: "Fantasy"}}, nil
	}

	rec := ts.do(http.MethodGet, "/api/v1/novels/popular", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var popular []catalog.Novel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &popular))
	require.Len(t, popular, 1)

	rec = ts.do(http.MethodGet, "/api/v1/genres", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"slug":"fantasy"`)
}

func TestNovelMutations(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.CreateNovelFn = func(ctx context.Context, req *catalog.CreateNovelRequest) (*catalog.Novel, error) {
		return &catalog.Novel{ID: 10, Title: req.Title}, nil
	}
	var updated *catalog.UpdateNovelRequest
	ts.catalog.UpdateNovelFn = func(ctx context.Context, id int64, req *catalog.UpdateNovelRequest) (*catalog.Novel, error) {
		updated = req
		return &catalog.Novel{ID: id}, nil
	}
	var deleted int64
	ts.catalog.DeleteNovelFn = func(ctx context.Context, id int64) error {
		deleted = id
		return nil
	}

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/novels", `{"title":"New"}`).Code)
	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/novels", `{"title":"  "}`).Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/novels/4", `{"title":"T","cover_changed":true}`).Code)
	require.NotNil(t, updated)
	require.True(t, updated.CoverChanged)
	require.Equal(t, "T", *updated.Title)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/novels/4", "").Code)
	require.Equal(t, int64(4), deleted)
}

func TestUserRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.GetUserFn = func(ctx context.Context, id int64) (*catalog.User, error) {
		return &catalog.User{ID: id, Username: "reader"}, nil
	}
	ts.media.AvatarURLFn = func(ctx context.Context, userID int64) ports.ImageDescriptor {
		return ports.ImageDescriptor{URL: "data:image/png;base64,AA==", Cached: true}
	}

	rec := ts.do(http.MethodGet, "/api/v1/users/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"username":"reader"`)

	rec = ts.do(http.MethodGet, "/api/v1/users/2/avatar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"url":"data:image/png;base64,AA==","cached":true}`, rec.Body.String())

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/users/2", `{"avatar_changed":true}`).Code)
}

func TestNovelCover(t *testing.T) {
	ts := newTestServer(t)
	ts.media.CoverURLFn = func(ctx context.Context, novelID int64) ports.ImageDescriptor {
		return ports.ImageDescriptor{URL: fmt.Sprintf("https://api.example.com/novels/%d/cover", novelID)}
	}

	rec := ts.do(http.MethodGet, "/api/v1/novels/8/cover", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"url":"https://api.example.com/novels/8/cover","cached":false}`, rec.Body.String())
}

func TestReceiveEvent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/events", `{"kind":"novel","resource_id":5,"action":"update","image_changed":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ts.cache.Events, 1)
	ev := ts.cache.Events[0]
	require.Equal(t, event.KindNovel, ev.Kind)
	require.Equal(t, int64(5), ev.ResourceID)
	require.True(t, ev.ImageChanged)
	require.False(t, ev.OccurredAt.IsZero())

	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/events", `{"kind":"chapter","resource_id":5,"action":"update"}`).Code)
	require.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/events", `{"kind":"novel","action":"update"}`).Code)
	require.Len(t, ts.cache.Events, 1)
}

func TestClearCache(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodDelete, "/api/v1/cache?pattern=novel_5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"removed":1}`, rec.Body.String())
	require.Equal(t, []string{"novel_5"}, ts.cache.Patterns)

	rec = ts.do(http.MethodDelete, "/api/v1/cache", "")
	require.JSONEq(t, `{"removed":3}`, rec.Body.String())
	require.Equal(t, 1, ts.cache.Cleared)
}

func TestHealth(t *testing.T) {
	require.Equal(t, http.StatusOK, newTestServer(t).do(http.MethodGet, "/health", "").Code)

	rec := newTestServer(t, failingChecker{}).do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"store":"unhealthy"`)
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodGet, "/api/v1/genres", "")

	rec := ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `http_requests_total{endpoint="/api/v1/genres",method="GET",status="200"} 1`)
}
