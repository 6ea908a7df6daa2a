package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/livedesk/internal/model"
)

// maxConflictRetries bounds how often Update re-runs a transaction that lost
// a write conflict.
const maxConflictRetries = 64

// noExpiry writes an entry without a TTL.
var noExpiry time.Time

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = errors.New("key not found")
)

// View runs fn in a read-only transaction.
func (d *DB) View(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// Update runs fn in a read-write transaction. Badger tracks every key fn
// reads, so a concurrent commit touching one of them makes this commit fail
// with badger.ErrConflict; fn is then re-run against fresh data. fn must be
// safe to run more than once.
func (d *DB) Update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = d.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// getTxn reads key into v inside txn.
func getTxn(txn *badger.Txn, key string, v model.Model) (*badger.Item, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return err
		}
		v.SetKey(key)
		return nil
	})
	return item, err
}

// setTxn writes v inside txn. A non-zero expiresAt gives the entry a TTL.
func setTxn(txn *badger.Txn, v model.Model, expiresAt time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := badger.NewEntry([]byte(v.GetKey()), data)
	if !expiresAt.IsZero() {
		e.ExpiresAt = uint64(expiresAt.Unix())
	}
	return txn.SetEntry(e)
}

// expiryOf returns the TTL an existing item carries, or the zero time.
func expiryOf(item *badger.Item) time.Time {
	if item == nil || item.ExpiresAt() == 0 {
		return time.Time{}
	}
	return time.Unix(int64(item.ExpiresAt()), 0)
}

// scanTxn decodes every value under prefix inside txn, in key order.
func scanTxn[T model.Model](txn *badger.Txn, prefix string, newFunc func() T) ([]T, error) {
	var results []T
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := string(item.KeyCopy(nil))
		err := item.Value(func(val []byte) error {
			v := newFunc()
			if err := json.Unmarshal(val, v); err != nil {
				return err
			}
			v.SetKey(key)
			results = append(results, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
