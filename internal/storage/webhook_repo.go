package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

// WebhookRepo provides operations for Webhook entities.
type WebhookRepo struct {
	db *DB
}

// NewWebhookRepo creates a new webhook repository.
func NewWebhookRepo(db *DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// Create creates a new webhook.
func (r *WebhookRepo) Create(ctx context.Context, webhook *model.Webhook) error {
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = time.Now()
	}
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		return setTxn(txn, webhook, noExpiry)
	})
}

// Get retrieves a webhook by name.
func (r *WebhookRepo) Get(ctx context.Context, name string) (*model.Webhook, error) {
	webhook := &model.Webhook{Name: name}
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		_, err := getTxn(txn, webhook.GetKey(), webhook)
		return err
	})
	if errors.Is(err, ErrKeyNotFound) {
		return nil, lderrors.ErrWebhookNotFound
	}
	if err != nil {
		return nil, err
	}
	return webhook, nil
}

// List retrieves all webhooks sorted by name.
func (r *WebhookRepo) List(ctx context.Context) ([]*model.Webhook, error) {
	var hooks []*model.Webhook
	err := r.db.View(ctx, func(txn *badger.Txn) error {
		var err error
		hooks, err = scanTxn(txn, model.PrefixWebhook+":", func() *model.Webhook {
			return &model.Webhook{}
		})
		return err
	})
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].Name < hooks[j].Name })
	return hooks, err
}

// ListEnabled retrieves all enabled webhooks.
func (r *WebhookRepo) ListEnabled(ctx context.Context) ([]*model.Webhook, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var enabled []*model.Webhook
	for _, wh := range all {
		if wh.Enabled {
			enabled = append(enabled, wh)
		}
	}
	return enabled, nil
}

// Delete removes a webhook by name.
func (r *WebhookRepo) Delete(ctx context.Context, name string) error {
	key := model.GenerateWebhookKey(name)
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return lderrors.ErrWebhookNotFound
			}
			return err
		}
		return txn.Delete([]byte(key))
	})
}

// SetEnabled enables or disables a webhook.
func (r *WebhookRepo) SetEnabled(ctx context.Context, name string, enabled bool) error {
	return r.mutate(ctx, name, func(w *model.Webhook) { w.Enabled = enabled })
}

// UpdateLastUsed updates the last used timestamp and the last error.
func (r *WebhookRepo) UpdateLastUsed(ctx context.Context, name string, lastErr error) error {
	return r.mutate(ctx, name, func(w *model.Webhook) {
		w.LastUsed = time.Now()
		if lastErr != nil {
			w.LastError = lastErr.Error()
		} else {
			w.LastError = ""
		}
	})
}

func (r *WebhookRepo) mutate(ctx context.Context, name string, fn func(*model.Webhook)) error {
	return r.db.Update(ctx, func(txn *badger.Txn) error {
		w := &model.Webhook{Name: name}
		if _, err := getTxn(txn, w.GetKey(), w); err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return lderrors.ErrWebhookNotFound
			}
			return err
		}
		fn(w)
		return setTxn(txn, w, noExpiry)
	})
}
