package storage

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"

	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/queue"
)

var _ queue.Store = (*NotificationQueueRepo)(nil)

// NotificationQueueRepo is the badger-backed notification queue.
//
// Generated job ids are ULIDs derived from ts. Every entry carries a TTL of ts plus queue.Retention, which updates
// preserve.
type NotificationQueueRepo struct {
	db *DB

	// Now is the clock used for ts and claim stamps.
	Now func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

// NewNotificationQueueRepo creates a new notification queue repository.
func NewNotificationQueueRepo(db *DB) *NotificationQueueRepo {
	return &NotificationQueueRepo{
		db:      db,
		Now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *NotificationQueueRepo) newID(ts time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(ts), r.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func newJob() *model.NotificationJob { return &model.NotificationJob{} }

const jobPrefix = model.PrefixNotification + ":"

// Enqueue stores a new job with ts = now unless ts is already set.
func (r *NotificationQueueRepo) Enqueue(ctx context.Context, job *model.NotificationJob) error {
	if job.TS.IsZero() {
		job.TS = r.Now()
	}
	if job.ID == "" {
		id, err := r.newID(job.TS)
		if err != nil {
			return err
		}
		job.ID = id
	}
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		return setTxn(txn, job, queue.ExpiresAt(job))
	})
}

// ClaimNext claims the eligible job with the smallest ts. Ids may be chosen
// by the caller, so key order is not trusted; ties fall back to key order.
// The scan and the write share one transaction; a concurrent claim of any
// job read here forces a retry.
func (r *NotificationQueueRepo) ClaimNext(ctx context.Context, staleAfter time.Time) (*model.NotificationJob, error) {
	var claimed *model.NotificationJob
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		claimed = nil
		now := r.Now()

		var (
			oldest  *model.NotificationJob
			expires time.Time
		)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix)
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			job := newJob()
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, job)
			}); err != nil {
				it.Close()
				return err
			}
			job.SetKey(string(item.KeyCopy(nil)))

			if !queue.Eligible(job, now, staleAfter) {
				continue
			}
			if oldest == nil || job.TS.Before(oldest.TS) {
				oldest = job
				expires = expiryOf(item)
			}
		}
		// The iterator must be closed before writing in the same txn.
		it.Close()

		if oldest == nil {
			return nil
		}
		sending := now
		oldest.Sending = &sending
		claimed = oldest
		return setTxn(txn, oldest, expires)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Release clears the claim on a job.
func (r *NotificationQueueRepo) Release(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(job *model.NotificationJob) bool {
		job.Sending = nil
		return true
	})
}

// MarkFailed records reason as the terminal error and clears the claim.
func (r *NotificationQueueRepo) MarkFailed(ctx context.Context, id, reason string) error {
	return r.mutate(ctx, id, func(job *model.NotificationJob) bool {
		job.Error = &reason
		job.Sending = nil
		return true
	})
}

// mutate applies fn to a stored job, keeping its TTL. Unknown ids are a
// no-op.
func (r *NotificationQueueRepo) mutate(ctx context.Context, id string, fn func(*model.NotificationJob) bool) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		job := &model.NotificationJob{ID: id}
		item, err := getTxn(txn, job.GetKey(), job)
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if !fn(job) {
			return nil
		}
		return setTxn(txn, job, expiryOf(item))
	})
}

// ClearSchedule unsets schedule on every job of uid.
func (r *NotificationQueueRepo) ClearSchedule(ctx context.Context, uid string) (int, error) {
	var n int
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		n = 0
		jobs, expiries, err := r.scanUser(txn, uid)
		if err != nil {
			return err
		}
		for i, job := range jobs {
			if job.Schedule == nil {
				continue
			}
			job.Schedule = nil
			if err := setTxn(txn, job, expiries[i]); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// ClearQueue deletes every job of uid.
func (r *NotificationQueueRepo) ClearQueue(ctx context.Context, uid string) (int, error) {
	var n int
	err := r.db.Update(ctx, func(txn *badger.Txn) error {
		n = 0
		jobs, _, err := r.scanUser(txn, uid)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if err := txn.Delete([]byte(job.GetKey())); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// scanUser collects the jobs of uid together with their expiry times. The
// iterator is closed before it returns, so callers may write.
func (r *NotificationQueueRepo) scanUser(txn *badger.Txn, uid string) ([]*model.NotificationJob, []time.Time, error) {
	var jobs []*model.NotificationJob
	var expiries []time.Time

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(jobPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		job := newJob()
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, job)
		}); err != nil {
			return nil, nil, err
		}
		if job.UID != uid {
			continue
		}
		job.SetKey(string(item.KeyCopy(nil)))
		jobs = append(jobs, job)
		expiries = append(expiries, expiryOf(item))
	}
	return jobs, expiries, nil
}

// Remove deletes a delivered job.
func (r *NotificationQueueRepo) Remove(ctx context.Context, id string) error {
	job := &model.NotificationJob{ID: id}
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(job.GetKey()))
	})
}

// Get returns a job or nil.
func (r *NotificationQueueRepo) Get(ctx context.Context, id string) (*model.NotificationJob, error) {
	job := &model.NotificationJob{ID: id}
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		_, err := getTxn(txn, job.GetKey(), job)
		return err
	})
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FindByUser returns the jobs of uid, oldest first.
func (r *NotificationQueueRepo) FindByUser(ctx context.Context, uid string) ([]*model.NotificationJob, error) {
	var jobs []*model.NotificationJob
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		jobs, _, err = r.scanUser(txn, uid)
		return err
	})
	return jobs, err
}

// List returns every job, oldest first.
func (r *NotificationQueueRepo) List(ctx context.Context) ([]*model.NotificationJob, error) {
	var jobs []*model.NotificationJob
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		jobs, err = scanTxn(txn, jobPrefix, newJob)
		return err
	})
	return jobs, err
}

// Stats summarizes the queue.
func (r *NotificationQueueRepo) Stats(ctx context.Context, staleAfter time.Time) (queue.Stats, error) {
	jobs, err := r.List(ctx)
	if err != nil {
		return queue.Stats{}, err
	}
	return queue.Summarize(jobs, r.Now(), staleAfter), nil
}
