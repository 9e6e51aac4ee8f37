package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// userAvatar answers immediately with either the cached image inline or the live
// endpoint; a miss schedules a background download.
func (s *Server) userAvatar(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.media.AvatarURL(c.Request().Context(), id))
}

func (s *Server) novelCover(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.media.CoverURL(c.Request().Context(), id))
}
