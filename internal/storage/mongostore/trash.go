package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/manav03panchal/livedesk/internal/model"
)

// Trash is the tombstone collection. Tombstone ids are collection-scoped,
// mirroring model.TrashRecord.GetKey.
type Trash struct {
	coll *mongo.Collection
	now  func() time.Time
}

func trashID(collection, id string) string {
	return collection + ":" + id
}

// Put captures v as the tombstone of collection/id.
func (t *Trash) Put(ctx context.Context, collection, id string, v any) error {
	rec, err := model.NewTrashRecord(collection, id, v)
	if err != nil {
		return err
	}
	rec.DeletedAt = t.now()
	_, err = t.coll.ReplaceOne(ctx, byID(trashID(collection, id)), toTrashDoc(rec), options.Replace().SetUpsert(true))
	return err
}

// toTrashDoc keeps the record id as "id" because the document _id carries
// the collection too.
func toTrashDoc(rec *model.TrashRecord) bson.D {
	return bson.D{
		{Key: "_id", Value: trashID(rec.Collection, rec.ID)},
		{Key: "id", Value: rec.ID},
		{Key: "__collection__", Value: rec.Collection},
		{Key: "_deletedAt", Value: rec.DeletedAt},
		{Key: "data", Value: rec.Data},
	}
}

type storedTrash struct {
	ID         string    `bson:"id"`
	Collection string    `bson:"__collection__"`
	DeletedAt  time.Time `bson:"_deletedAt"`
	Data       []byte    `bson:"data"`
}

func (s storedTrash) record() *model.TrashRecord {
	return &model.TrashRecord{
		ID:         s.ID,
		Collection: s.Collection,
		DeletedAt:  s.DeletedAt,
		Data:       s.Data,
	}
}

// Get returns the tombstone of collection/id, or nil.
func (t *Trash) Get(ctx context.Context, collection, id string) (*model.TrashRecord, error) {
	var s storedTrash
	err := t.coll.FindOne(ctx, byID(trashID(collection, id))).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.record(), nil
}

// List returns every tombstone of collection, or of all collections when
// collection is empty.
func (t *Trash) List(ctx context.Context, collection string) ([]*model.TrashRecord, error) {
	filter := bson.D{}
	if collection != "" {
		filter = bson.D{{Key: "__collection__", Value: collection}}
	}
	cur, err := t.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var stored []storedTrash
	if err := cur.All(ctx, &stored); err != nil {
		return nil, err
	}
	out := make([]*model.TrashRecord, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.record())
	}
	return out, nil
}

// Purge permanently deletes a tombstone.
func (t *Trash) Purge(ctx context.Context, collection, id string) error {
	_, err := t.coll.DeleteOne(ctx, byID(trashID(collection, id)))
	return err
}
