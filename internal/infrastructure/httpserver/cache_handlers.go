package httpserver

import (
	"net/http"
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// receiveEvent accepts a push event from the catalog backend and invalidates the keys
// it affects before answering.
func (s *Server) receiveEvent(c echo.Context) error {
	var ev event.Mutation
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !ev.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "event needs a known kind, action and resource id")
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	s.events.Publish(c.Request().Context(), ev)
	return c.JSON(http.StatusAccepted, map[string]any{"id": ev.ID})
}

// clearCache drops records whose key contains ?pattern=, or everything when it is absent.
func (s *Server) clearCache(c echo.Context) error {
	ctx := c.Request().Context()
	pattern := c.QueryParam("pattern")

	var removed int
	if pattern == "" {
		removed = s.cache.InvalidateAll(ctx)
	} else {
		removed = s.cache.InvalidatePattern(ctx, pattern)
	}
	s.logger.WithFields(logrus.Fields{"pattern": pattern, "removed": removed}).Info("Cache cleared on request")
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}
