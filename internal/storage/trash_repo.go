package storage

import (
	"context"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/livedesk/internal/model"
)

// TrashRepo stores tombstones of soft-deleted documents.
type TrashRepo struct {
	db *DB
}

// NewTrashRepo creates a new trash repository.
func NewTrashRepo(db *DB) *TrashRepo {
	return &TrashRepo{db: db}
}

// Put captures v as the tombstone of collection/id.
func (r *TrashRepo) Put(ctx context.Context, collection, id string, v any) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		return putTrashTxn(txn, collection, id, v)
	})
}

func putTrashTxn(txn *badger.Txn, collection, id string, v any) error {
	rec, err := model.NewTrashRecord(collection, id, v)
	if err != nil {
		return err
	}
	return setTxn(txn, rec, noExpiry)
}

// Get returns the tombstone of collection/id, or nil.
func (r *TrashRepo) Get(ctx context.Context, collection, id string) (*model.TrashRecord, error) {
	rec := &model.TrashRecord{Collection: collection, ID: id}
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		_, err := getTxn(txn, rec.GetKey(), rec)
		return err
	})
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns every tombstone of collection, or of all collections when
// collection is empty.
func (r *TrashRepo) List(ctx context.Context, collection string) ([]*model.TrashRecord, error) {
	prefix := model.PrefixTrash + ":"
	if collection != "" {
		prefix += collection + ":"
	}
	var out []*model.TrashRecord
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = scanTxn(txn, prefix, func() *model.TrashRecord { return &model.TrashRecord{} })
		return err
	})
	return out, err
}

// Purge permanently deletes a tombstone.
func (r *TrashRepo) Purge(ctx context.Context, collection, id string) error {
	rec := &model.TrashRecord{Collection: collection, ID: id}
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(rec.GetKey()))
	})
}
