package cache

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformedEntry marks a stored value that cannot be decoded. Such entries are
// deleted on access and reported as a miss.
var ErrMalformedEntry = errors.New("malformed cache entry")

// entryHeader is the part of every persisted entry that expiry and eviction need.
// Times are unix milliseconds so that entries survive process restarts unchanged.
type entryHeader struct {
	StoredAt int64 `json:"storedAt"`
	TTL      int64 `json:"ttl"`
}

// newHeader rounds ttl up to whole milliseconds so that any positive ttl stays valid.
func newHeader(now time.Time, ttl time.Duration) entryHeader {
	ms := int64((ttl + time.Millisecond - 1) / time.Millisecond)
	return entryHeader{StoredAt: now.UnixMilli(), TTL: ms}
}

// expired reports whether now - storedAt > ttl.
func (h entryHeader) expired(now time.Time) bool {
	return now.UnixMilli()-h.StoredAt > h.TTL
}

func (h entryHeader) valid() bool {
	return h.StoredAt > 0 && h.TTL > 0
}

// entry is a persisted record: {data, storedAt, ttl}.
type entry struct {
	entryHeader
	Data json.RawMessage `json:"data"`
}

func decodeEntry(raw []byte) (entry, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return entry{}, errors.Join(ErrMalformedEntry, err)
	}
	if !e.valid() || len(e.Data) == 0 {
		return entry{}, ErrMalformedEntry
	}
	return e, nil
}

// blobEntry is a persisted binary payload. Default entries carry no data and record
// that the source had nothing to serve.
type blobEntry struct {
	entryHeader
	Data        []byte `json:"data,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	SizeBytes   int    `json:"sizeBytes"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

func decodeBlobEntry(raw []byte) (blobEntry, error) {
	var e blobEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return blobEntry{}, errors.Join(ErrMalformedEntry, err)
	}
	if !e.valid() || (!e.IsDefault && len(e.Data) != e.SizeBytes) {
		return blobEntry{}, ErrMalformedEntry
	}
	return e, nil
}
