package mongostore

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/queue"
)

var _ queue.Store = (*NotificationQueue)(nil)

// NotificationQueue is the notification_queue collection. Expiry is left to
// the ts TTL index.
type NotificationQueue struct {
	coll *mongo.Collection
	now  func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

func newNotificationQueue(coll *mongo.Collection, now func() time.Time) *NotificationQueue {
	return &NotificationQueue{
		coll:    coll,
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (q *NotificationQueue) newID(ts time.Time) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(ts), q.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Enqueue inserts a job with ts = now unless ts is already set.
func (q *NotificationQueue) Enqueue(ctx context.Context, job *model.NotificationJob) error {
	if job.TS.IsZero() {
		job.TS = q.now()
	}
	if job.ID == "" {
		id, err := q.newID(job.TS)
		if err != nil {
			return err
		}
		job.ID = id
	}
	_, err := q.coll.InsertOne(ctx, job)
	return err
}

// ClaimNext claims the oldest eligible job in a single findAndModify.
func (q *NotificationQueue) ClaimNext(ctx context.Context, staleAfter time.Time) (*model.NotificationJob, error) {
	now := q.now()
	var job model.NotificationJob
	err := q.coll.FindOneAndUpdate(ctx, claimFilter(now, staleAfter), claimUpdate(now), claimOptions()).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Release clears the claim on a job.
func (q *NotificationQueue) Release(ctx context.Context, id string) error {
	_, err := q.coll.UpdateOne(ctx, byID(id), releaseUpdate())
	return err
}

// MarkFailed records reason as the terminal error and clears the claim.
func (q *NotificationQueue) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := q.coll.UpdateOne(ctx, byID(id), markFailedUpdate(reason))
	return err
}

// ClearSchedule unsets schedule on every job of uid.
func (q *NotificationQueue) ClearSchedule(ctx context.Context, uid string) (int, error) {
	res, err := q.coll.UpdateMany(ctx, scheduledForUserFilter(uid), clearScheduleUpdate())
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

// ClearQueue deletes every job of uid.
func (q *NotificationQueue) ClearQueue(ctx context.Context, uid string) (int, error) {
	res, err := q.coll.DeleteMany(ctx, byUser(uid))
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

// Remove deletes a delivered job.
func (q *NotificationQueue) Remove(ctx context.Context, id string) error {
	_, err := q.coll.DeleteOne(ctx, byID(id))
	return err
}

// Get returns a job or nil.
func (q *NotificationQueue) Get(ctx context.Context, id string) (*model.NotificationJob, error) {
	var job model.NotificationJob
	err := q.coll.FindOne(ctx, byID(id)).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *NotificationQueue) find(ctx context.Context, filter bson.D) ([]*model.NotificationJob, error) {
	cur, err := q.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "ts", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	jobs := []*model.NotificationJob{}
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindByUser returns the jobs of uid, oldest first.
func (q *NotificationQueue) FindByUser(ctx context.Context, uid string) ([]*model.NotificationJob, error) {
	return q.find(ctx, byUser(uid))
}

// List returns every job, oldest first.
func (q *NotificationQueue) List(ctx context.Context) ([]*model.NotificationJob, error) {
	return q.find(ctx, bson.D{})
}

// Stats summarizes the queue.
func (q *NotificationQueue) Stats(ctx context.Context, staleAfter time.Time) (queue.Stats, error) {
	jobs, err := q.List(ctx)
	if err != nil {
		return queue.Stats{}, err
	}
	return queue.Summarize(jobs, q.now(), staleAfter), nil
}
