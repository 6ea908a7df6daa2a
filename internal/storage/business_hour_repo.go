package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

var _ businesshours.Directory = (*BusinessHourRepo)(nil)

// BusinessHourRepo provides operations for BusinessHour entities. Queries
// run as in-memory filters over the full prefix scan; a deployment holds a
// handful of windows.
type BusinessHourRepo struct {
	db *DB

	// Now is the clock used for ts and _updatedAt.
	Now func() time.Time
}

// NewBusinessHourRepo creates a new business hour repository.
func NewBusinessHourRepo(db *DB) *BusinessHourRepo {
	return &BusinessHourRepo{db: db, Now: time.Now}
}

func (r *BusinessHourRepo) all(ctx context.Context) ([]*model.BusinessHour, error) {
	var hours []*model.BusinessHour
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		hours, err = scanTxn(txn, model.PrefixBusinessHour+":", newBusinessHour)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortByTS(hours)
	return hours, nil
}

func newBusinessHour() *model.BusinessHour { return &model.BusinessHour{} }

func sortByTS(hours []*model.BusinessHour) {
	sort.SliceStable(hours, func(i, j int) bool {
		if !hours[i].TS.Equal(hours[j].TS) {
			return hours[i].TS.Before(hours[j].TS)
		}
		return hours[i].ID < hours[j].ID
	})
}

// FindDefault returns the DEFAULT window. If legacy data holds more than
// one, the oldest wins.
func (r *BusinessHourRepo) FindDefault(ctx context.Context) (*model.BusinessHour, error) {
	hours, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range hours {
		if b.IsDefault() {
			return b, nil
		}
	}
	return nil, nil
}

// FindActiveOpenByDay returns active windows open on q.Day.
func (r *BusinessHourRepo) FindActiveOpenByDay(ctx context.Context, q businesshours.DayQuery) ([]*model.BusinessHour, error) {
	hours, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return businesshours.Filter(hours, func(b *model.BusinessHour) bool {
		return businesshours.OpenOnDay(b, q.Day)
	}), nil
}

// FindDefaultActiveOpenByDay returns the active DEFAULT windows with a work
// hour starting and finishing on q.Day.
func (r *BusinessHourRepo) FindDefaultActiveOpenByDay(ctx context.Context, q businesshours.DayQuery) ([]*model.BusinessHour, error) {
	hours, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return businesshours.Filter(hours, func(b *model.BusinessHour) bool {
		return b.IsDefault() && businesshours.OpenStartAndFinishOnDay(b, q.Day)
	}), nil
}

// ComputeScheduleTable reduces active windows into a schedule table.
func (r *BusinessHourRepo) ComputeScheduleTable(ctx context.Context) (businesshours.ScheduleTable, error) {
	hours, err := r.all(ctx)
	if err != nil {
		return businesshours.ScheduleTable{}, err
	}
	return businesshours.BuildScheduleTable(hours), nil
}

// FindActiveToOpen returns active windows whose start fires at q.
func (r *BusinessHourRepo) FindActiveToOpen(ctx context.Context, q businesshours.TriggerQuery) ([]*model.BusinessHour, error) {
	hours, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return businesshours.Filter(hours, func(b *model.BusinessHour) bool {
		return businesshours.OpensAt(b, q)
	}), nil
}

// FindActiveToClose returns active windows whose finish fires at q.
func (r *BusinessHourRepo) FindActiveToClose(ctx context.Context, q businesshours.TriggerQuery) ([]*model.BusinessHour, error) {
	hours, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return businesshours.Filter(hours, func(b *model.BusinessHour) bool {
		return businesshours.ClosesAt(b, q)
	}), nil
}

// Insert stores a new window.
func (r *BusinessHourRepo) Insert(ctx context.Context, b *model.BusinessHour) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := r.Now()
	if b.TS.IsZero() {
		b.TS = now
	}
	b.UpdatedAt = now
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		return setTxn(txn, b, noExpiry)
	})
}

// Update replaces a stored window.
func (r *BusinessHourRepo) Update(ctx context.Context, b *model.BusinessHour) error {
	b.UpdatedAt = r.Now()
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(b.GetKey())); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return lderrors.ErrBusinessHourNotFound
			}
			return err
		}
		return setTxn(txn, b, noExpiry)
	})
}

// FindByID returns a window or nil.
func (r *BusinessHourRepo) FindByID(ctx context.Context, id string) (*model.BusinessHour, error) {
	b := &model.BusinessHour{ID: id}
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		_, err := getTxn(txn, b.GetKey(), b)
		return err
	})
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// List returns every window, oldest first.
func (r *BusinessHourRepo) List(ctx context.Context) ([]*model.BusinessHour, error) {
	return r.all(ctx)
}

// Remove moves a window to the trash in the same transaction that deletes
// it.
func (r *BusinessHourRepo) Remove(ctx context.Context, id string) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		b := &model.BusinessHour{ID: id}
		if _, err := getTxn(txn, b.GetKey(), b); err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if err := putTrashTxn(txn, model.CollectionBusinessHours, id, b); err != nil {
			return err
		}
		return txn.Delete([]byte(b.GetKey()))
	})
}
