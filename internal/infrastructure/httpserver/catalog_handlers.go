package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/catalog"
	"github.com/labstack/echo/v4"
)

func (s *Server) listNovels(c echo.Context) error {
	q := catalog.NovelQuery{
		Search: c.QueryParam("q"),
		Genres: splitList(c.QueryParams()["genre"]),
		Tags:   splitList(c.QueryParams()["tag"]),
		Status: c.QueryParam("status"),
		Sort:   c.QueryParam("sort"),
	}
	var err error
	if q.Page, err = intParam(c, "page"); err != nil {
		return err
	}
	if q.PerPage, err = intParam(c, "per_page"); err != nil {
		return err
	}
	if q.PerPage > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "per_page must be at most 100")
	}

	page, err := s.catalog.ListNovels(c.Request().Context(), q)
	if err != nil {
		return s.serviceError(c, err, "novels")
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) getNovel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	n, err := s.catalog.GetNovel(c.Request().Context(), id)
	if err != nil {
		return s.serviceError(c, err, "novel")
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) popularNovels(c echo.Context) error {
	novels, err := s.catalog.PopularThisWeek(c.Request().Context())
	if err != nil {
		return s.serviceError(c, err, "popular novels")
	}
	return c.JSON(http.StatusOK, novels)
}

func (s *Server) listGenres(c echo.Context) error {
	genres, err := s.catalog.ListGenres(c.Request().Context())
	if err != nil {
		return s.serviceError(c, err, "genres")
	}
	return c.JSON(http.StatusOK, genres)
}

func (s *Server) createNovel(c echo.Context) error {
	var req catalog.CreateNovelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	n, err := s.catalog.CreateNovel(c.Request().Context(), &req)
	if err != nil {
		return s.serviceError(c, err, "novel")
	}
	return c.JSON(http.StatusCreated, n)
}

func (s *Server) updateNovel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req catalog.UpdateNovelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	n, err := s.catalog.UpdateNovel(c.Request().Context(), id, &req)
	if err != nil {
		return s.serviceError(c, err, "novel")
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) deleteNovel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := s.catalog.DeleteNovel(c.Request().Context(), id); err != nil {
		return s.serviceError(c, err, "novel")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := s.catalog.GetUser(c.Request().Context(), id)
	if err != nil {
		return s.serviceError(c, err, "user")
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) updateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req catalog.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	u, err := s.catalog.UpdateUser(c.Request().Context(), id, &req)
	if err != nil {
		return s.serviceError(c, err, "user")
	}
	return c.JSON(http.StatusOK, u)
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}
