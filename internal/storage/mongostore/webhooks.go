package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

// Webhooks is the webhook collection, keyed by name.
type Webhooks struct {
	coll *mongo.Collection
}

// Create stores a webhook, replacing one with the same name.
func (w *Webhooks) Create(ctx context.Context, webhook *model.Webhook) error {
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = time.Now()
	}
	_, err := w.coll.ReplaceOne(ctx, byID(webhook.Name), webhook, options.Replace().SetUpsert(true))
	return err
}

// Get returns a webhook or ErrWebhookNotFound.
func (w *Webhooks) Get(ctx context.Context, name string) (*model.Webhook, error) {
	var hook model.Webhook
	err := w.coll.FindOne(ctx, byID(name)).Decode(&hook)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, lderrors.ErrWebhookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hook, nil
}

func (w *Webhooks) find(ctx context.Context, filter bson.D) ([]*model.Webhook, error) {
	cur, err := w.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	hooks := []*model.Webhook{}
	if err := cur.All(ctx, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

// List returns every webhook sorted by name.
func (w *Webhooks) List(ctx context.Context) ([]*model.Webhook, error) {
	return w.find(ctx, bson.D{})
}

// ListEnabled returns the enabled webhooks.
func (w *Webhooks) ListEnabled(ctx context.Context) ([]*model.Webhook, error) {
	return w.find(ctx, bson.D{{Key: "enabled", Value: true}})
}

// Delete removes a webhook.
func (w *Webhooks) Delete(ctx context.Context, name string) error {
	res, err := w.coll.DeleteOne(ctx, byID(name))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return lderrors.ErrWebhookNotFound
	}
	return nil
}

func (w *Webhooks) set(ctx context.Context, name string, update bson.D) error {
	res, err := w.coll.UpdateOne(ctx, byID(name), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return lderrors.ErrWebhookNotFound
	}
	return nil
}

// SetEnabled enables or disables a webhook.
func (w *Webhooks) SetEnabled(ctx context.Context, name string, enabled bool) error {
	return w.set(ctx, name, bson.D{{Key: "$set", Value: bson.D{{Key: "enabled", Value: enabled}}}})
}

// UpdateLastUsed records a delivery attempt.
func (w *Webhooks) UpdateLastUsed(ctx context.Context, name string, lastErr error) error {
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return w.set(ctx, name, bson.D{{Key: "$set", Value: bson.D{
		{Key: "lastUsed", Value: time.Now()},
		{Key: "lastError", Value: msg},
	}}})
}
