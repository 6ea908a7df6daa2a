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

// Migrations holds the single migration control document.
type Migrations struct {
	coll *mongo.Collection
	now  func() time.Time
}

// Control returns the control document. A fresh database is at version 0.
func (m *Migrations) Control(ctx context.Context) (*model.MigrationControl, error) {
	c := &model.MigrationControl{}
	err := m.coll.FindOne(ctx, byID(model.MigrationControlID)).Decode(c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &model.MigrationControl{ID: model.MigrationControlID}, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Lock takes the migration lock with an upsert guarded by lockFilter. When
// the control document exists and is held, the upsert collides on _id and
// the lock is reported as not acquired.
func (m *Migrations) Lock(ctx context.Context, staleAfter time.Time) (bool, error) {
	res, err := m.coll.UpdateOne(ctx, lockFilter(staleAfter), lockUpdate(m.now()), options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

// Unlock releases the migration lock.
func (m *Migrations) Unlock(ctx context.Context) error {
	_, err := m.coll.UpdateOne(ctx, byID(model.MigrationControlID), bson.D{
		{Key: "$set", Value: bson.D{{Key: "locked", Value: false}}},
		{Key: "$unset", Value: bson.D{{Key: "lockedAt", Value: 1}}},
	})
	return err
}

// SetVersion records the applied schema version.
func (m *Migrations) SetVersion(ctx context.Context, version int) error {
	_, err := m.coll.UpdateOne(ctx, byID(model.MigrationControlID), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "version", Value: version},
			{Key: "buildAt", Value: m.now()},
		}},
	}, options.Update().SetUpsert(true))
	return err
}
