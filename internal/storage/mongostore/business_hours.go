package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

var _ businesshours.Directory = (*BusinessHours)(nil)

// BusinessHours is the livechat_business_hours collection.
type BusinessHours struct {
	coll  *mongo.Collection
	trash *Trash
	now   func() time.Time
}

var oldestFirst = options.Find().SetSort(bson.D{{Key: "ts", Value: 1}, {Key: "_id", Value: 1}})

func (c *BusinessHours) find(ctx context.Context, filter bson.D) ([]*model.BusinessHour, error) {
	cur, err := c.coll.Find(ctx, filter, oldestFirst)
	if err != nil {
		return nil, err
	}
	hours := []*model.BusinessHour{}
	if err := cur.All(ctx, &hours); err != nil {
		return nil, err
	}
	return hours, nil
}

func (c *BusinessHours) findOne(ctx context.Context, filter bson.D) (*model.BusinessHour, error) {
	var b model.BusinessHour
	err := c.coll.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "ts", Value: 1}})).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindDefault returns the oldest DEFAULT window or nil.
func (c *BusinessHours) FindDefault(ctx context.Context) (*model.BusinessHour, error) {
	return c.findOne(ctx, defaultFilter())
}

// FindActiveOpenByDay returns active windows open on q.Day.
func (c *BusinessHours) FindActiveOpenByDay(ctx context.Context, q businesshours.DayQuery) ([]*model.BusinessHour, error) {
	return c.find(ctx, activeOpenByDayFilter(q))
}

// FindDefaultActiveOpenByDay returns active DEFAULT windows with a work hour
// starting and finishing on q.Day.
func (c *BusinessHours) FindDefaultActiveOpenByDay(ctx context.Context, q businesshours.DayQuery) ([]*model.BusinessHour, error) {
	return c.find(ctx, defaultActiveOpenByDayFilter(q))
}

// ComputeScheduleTable runs the schedule aggregation.
func (c *BusinessHours) ComputeScheduleTable(ctx context.Context) (businesshours.ScheduleTable, error) {
	cur, err := c.coll.Aggregate(ctx, scheduleTablePipeline())
	if err != nil {
		return businesshours.ScheduleTable{}, err
	}
	var out []businesshours.ScheduleTable
	if err := cur.All(ctx, &out); err != nil {
		return businesshours.ScheduleTable{}, err
	}
	if len(out) == 0 {
		return businesshours.ScheduleTable{}.Normalize(), nil
	}
	return out[0].Normalize(), nil
}

// FindActiveToOpen returns active windows whose start fires at q.
func (c *BusinessHours) FindActiveToOpen(ctx context.Context, q businesshours.TriggerQuery) ([]*model.BusinessHour, error) {
	return c.find(ctx, triggerFilter("start", q))
}

// FindActiveToClose returns active windows whose finish fires at q.
func (c *BusinessHours) FindActiveToClose(ctx context.Context, q businesshours.TriggerQuery) ([]*model.BusinessHour, error) {
	return c.find(ctx, triggerFilter("finish", q))
}

// Insert stores a new window.
func (c *BusinessHours) Insert(ctx context.Context, b *model.BusinessHour) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := c.now()
	if b.TS.IsZero() {
		b.TS = now
	}
	b.UpdatedAt = now
	_, err := c.coll.InsertOne(ctx, b)
	return err
}

// Update replaces a stored window.
func (c *BusinessHours) Update(ctx context.Context, b *model.BusinessHour) error {
	b.UpdatedAt = c.now()
	res, err := c.coll.ReplaceOne(ctx, byID(b.ID), b)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return lderrors.ErrBusinessHourNotFound
	}
	return nil
}

// FindByID returns a window or nil.
func (c *BusinessHours) FindByID(ctx context.Context, id string) (*model.BusinessHour, error) {
	return c.findOne(ctx, byID(id))
}

// List returns every window, oldest first.
func (c *BusinessHours) List(ctx context.Context) ([]*model.BusinessHour, error) {
	return c.find(ctx, bson.D{})
}

// Remove copies the window into the trash and then deletes it. The trash
// write is an upsert, so a retry after a partial failure converges.
func (c *BusinessHours) Remove(ctx context.Context, id string) error {
	b, err := c.FindByID(ctx, id)
	if err != nil || b == nil {
		return err
	}
	if err := c.trash.Put(ctx, model.CollectionBusinessHours, id, b); err != nil {
		return err
	}
	_, err = c.coll.DeleteOne(ctx, byID(id))
	return err
}
