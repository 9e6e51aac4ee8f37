package event

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of change a mutation made.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource kinds carried by mutation events and used as cache key prefixes.
const (
	KindNovel   = "novel"
	KindNovels  = "novels"
	KindGenre   = "genre"
	KindGenres  = "genres"
	KindPopular = "popular"
	KindUser    = "user"
	KindAvatar  = "avatar"
	KindCover   = "cover"
)

// Mutation identifies a changed resource. It is produced by local mutations and
// received from the push channel.
type Mutation struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	ResourceID int64     `json:"resource_id"`
	Action     Action    `json:"action"`
	// ImageChanged marks mutations that replaced the entity's avatar or cover.
	ImageChanged bool      `json:"image_changed,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewMutation builds a mutation event with a fresh ID.
func NewMutation(kind string, resourceID int64, action Action) Mutation {
	return Mutation{
		ID:         uuid.New(),
		Kind:       kind,
		ResourceID: resourceID,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
}

// Valid reports whether the event carries enough identity to invalidate caches.
func (m Mutation) Valid() bool {
	switch m.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return false
	}
	switch m.Kind {
	case KindNovel, KindGenre, KindUser:
		return m.Action == ActionCreate || m.ResourceID > 0
	}
	return false
}
