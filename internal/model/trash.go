package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TrashRecord is a tombstone for a soft-deleted document. Normal queries
// never read it; only recovery tooling does.
type TrashRecord struct {
	ID         string          `json:"_id" bson:"_id"`
	Collection string          `json:"__collection__" bson:"__collection__"`
	DeletedAt  time.Time       `json:"_deletedAt" bson:"_deletedAt"`
	Data       json.RawMessage `json:"data" bson:"data"`
}

// SetKey sets the database key for this record.
func (t *TrashRecord) SetKey(key string) {
	rest := IDFromKey(PrefixTrash, key)
	if coll, id, ok := strings.Cut(rest, ":"); ok {
		t.Collection = coll
		t.ID = id
		return
	}
	t.ID = rest
}

// GetKey returns the database key for this record. Tombstones are keyed by
// collection and id so the same id in two collections never collides.
func (t *TrashRecord) GetKey() string {
	return GenerateKey(PrefixTrash, t.Collection+":"+t.ID)
}

// NewTrashRecord captures v as a tombstone for the given collection.
func NewTrashRecord(collection, id string, v any) (*TrashRecord, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &TrashRecord{
		ID:         id,
		Collection: collection,
		DeletedAt:  time.Now(),
		Data:       data,
	}, nil
}

// Decode unmarshals the captured document into v.
func (t *TrashRecord) Decode(v any) error {
	return json.Unmarshal(t.Data, v)
}
