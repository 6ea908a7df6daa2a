package storage

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/livedesk/internal/model"
)

// MigrationRepo stores the migration control record.
type MigrationRepo struct {
	db *DB

	// Now is the clock used for lock stamps.
	Now func() time.Time
}

// NewMigrationRepo creates a new migration repository.
func NewMigrationRepo(db *DB) *MigrationRepo {
	return &MigrationRepo{db: db, Now: time.Now}
}

func (r *MigrationRepo) controlTxn(txn *badger.Txn) (*model.MigrationControl, error) {
	c := &model.MigrationControl{ID: model.MigrationControlID}
	if _, err := getTxn(txn, c.GetKey(), c); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}
	c.ID = model.MigrationControlID
	return c, nil
}

// Control returns the control record. A fresh database is at version 0.
func (r *MigrationRepo) Control(ctx context.Context) (*model.MigrationControl, error) {
	var c *model.MigrationControl
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		c, err = r.controlTxn(txn)
		return err
	})
	return c, err
}

// Lock takes the migration lock. A lock older than staleAfter is taken
// over. It reports false when another process holds a live lock.
func (r *MigrationRepo) Lock(ctx context.Context, staleAfter time.Time) (bool, error) {
	var acquired bool
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		acquired = false
		c, err := r.controlTxn(txn)
		if err != nil {
			return err
		}
		if c.Locked && c.LockedAt.After(staleAfter) {
			return nil
		}
		c.Locked = true
		c.LockedAt = r.Now()
		acquired = true
		return setTxn(txn, c, noExpiry)
	})
	return acquired, err
}

// Unlock releases the migration lock.
func (r *MigrationRepo) Unlock(ctx context.Context) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		c, err := r.controlTxn(txn)
		if err != nil {
			return err
		}
		c.Locked = false
		c.LockedAt = time.Time{}
		return setTxn(txn, c, noExpiry)
	})
}

// SetVersion records the applied schema version.
func (r *MigrationRepo) SetVersion(ctx context.Context, version int) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		c, err := r.controlTxn(txn)
		if err != nil {
			return err
		}
		c.Version = version
		c.BuildAt = r.Now()
		return setTxn(txn, c, noExpiry)
	})
}
