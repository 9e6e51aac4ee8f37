package catalog

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Novel is a catalog entry.
type Novel struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Status      string    `json:"status,omitempty"`
	Chapters    int       `json:"chapters"`
	Rating      float64   `json:"rating"`
	Views       int64     `json:"views"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NovelPage is one page of a list query.
type NovelPage struct {
	Items   []Novel `json:"items"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}

// Genre is taxonomy reference data.
type Genre struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// User is a reader profile.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Bio       string `json:"bio,omitempty"`
	HasAvatar bool   `json:"has_avatar"`
}

// CreateNovelRequest is the payload for creating a catalog entry.
type CreateNovelRequest struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateNovelRequest is the payload for updating a catalog entry. Nil fields are left unchanged.
type UpdateNovelRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	// CoverChanged is set when the request replaced the cover image.
	CoverChanged bool `json:"cover_changed,omitempty"`
}

// UpdateUserRequest is the payload for updating a profile.
type UpdateUserRequest struct {
	Bio           *string `json:"bio,omitempty"`
	AvatarChanged bool    `json:"avatar_changed,omitempty"`
}

// NovelQuery holds every filter, sort and pagination parameter that affects a list result.
type NovelQuery struct {
	Search  string
	Genres  []string
	Tags    []string
	Status  string
	Sort    string
	Page    int
	PerPage int
}

// Normalize applies defaults so that equivalent queries look the same.
func (q NovelQuery) Normalize() NovelQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
	if q.Sort == "" {
		q.Sort = "updated"
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Genres = normalizeSet(q.Genres)
	q.Tags = normalizeSet(q.Tags)
	return q
}

// CacheParams returns the canonical parameter map for cache keys and remote requests.
// Genre and tag filters are sets, so their order never matters.
func (q NovelQuery) CacheParams() map[string]string {
	q = q.Normalize()
	params := map[string]string{
		"page":     strconv.Itoa(q.Page),
		"per_page": strconv.Itoa(q.PerPage),
		"sort":     q.Sort,
	}
	if q.Search != "" {
		params["q"] = q.Search
	}
	if len(q.Genres) > 0 {
		params["genres"] = strings.Join(q.Genres, ",")
	}
	if len(q.Tags) > 0 {
		params["tags"] = strings.Join(q.Tags, ",")
	}
	if q.Status != "" {
		params["status"] = q.Status
	}
	return params
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
