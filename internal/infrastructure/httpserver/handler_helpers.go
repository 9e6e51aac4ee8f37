package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/labstack/echo/v4"
)

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// serviceError maps catalog errors onto HTTP answers.
func (s *Server) serviceError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, ports.ErrResourceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	case errors.Is(err, ports.ErrSourceFetchFailed):
		s.logger.WithError(err).WithField("path", c.Path()).Warn("Remote API call failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to load "+what)
	default:
		s.logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
