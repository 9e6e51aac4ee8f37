package ports

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/avatarctic/novel-reader/go/internal/core/domain/event"
)

var (
	// ErrNoContent signals that a blob endpoint has nothing to serve (e.g. the user has no avatar).
	ErrNoContent = errors.New("no content")
	// ErrSourceFetchFailed wraps any failure of the remote API.
	ErrSourceFetchFailed = errors.New("source fetch failed")
)

// ResourceDescriptor identifies one remote API read.
type ResourceDescriptor struct {
	Kind   string
	ID     string
	Params map[string]string
}

// DataSource is the remote API a record cache miss delegates to.
type DataSource interface {
	Fetch(ctx context.Context, desc ResourceDescriptor) (json.RawMessage, error)
}

// Blob is a binary payload returned by a BlobSource.
type Blob struct {
	Data        []byte
	ContentType string
}

// BlobSource fetches binary payloads such as avatars and covers.
// It returns ErrNoContent when the entity has no image.
type BlobSource interface {
	FetchBlob(ctx context.Context, endpoint string) (*Blob, error)
}

// MutationRequest describes a create/update/delete call against the remote API.
type MutationRequest struct {
	Action event.Action
	Kind   string
	ID     string
	Body   any
}

// Mutator performs remote create/update/delete calls.
type Mutator interface {
	Mutate(ctx context.Context, req MutationRequest) (json.RawMessage, error)
}

// MutationHandler reacts to a mutation event.
type MutationHandler interface {
	Handle(ctx context.Context, ev event.Mutation)
}

// MutationNotifier fans mutation events out to subscribed handlers. Events come from
// local create/update/delete operations and from the push channel.
type MutationNotifier interface {
	Publish(ctx context.Context, ev event.Mutation)
	Subscribe(h MutationHandler)
}
