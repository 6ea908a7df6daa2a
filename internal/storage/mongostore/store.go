// Package mongostore implements the livedesk stores on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
)

// Options configures the connection.
type Options struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store is a connected MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// Now is the clock shared by every collection wrapper.
	Now func() time.Time
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.Timeout).
		SetServerSelectionTimeout(opts.Timeout).
		SetAppName("livedesk")

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.NewSystemErrorWithOp("connect", "cannot reach MongoDB",
			fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.NewSystemErrorWithOp("ping", "cannot reach MongoDB",
			fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err))
	}

	logging.DebugLog("connected to MongoDB",
		logging.KeyStore, "mongo",
		"uri", logging.MaskCredentials(opts.URI),
		"database", opts.Database)

	return &Store{
		client: client,
		db:     client.Database(opts.Database),
		Now:    time.Now,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// EnsureIndexes declares every index the stores rely on. It is safe to call
// on each start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for collection, models := range IndexModels() {
		if len(models) == 0 {
			continue
		}
		names, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
		logging.DebugLog("indexes ensured", "collection", collection, logging.KeyCount, len(names))
	}
	return nil
}

// BusinessHours returns the business hours collection wrapper.
func (s *Store) BusinessHours() *BusinessHours {
	return &BusinessHours{coll: s.db.Collection(model.CollectionBusinessHours), trash: s.Trash(), now: s.now}
}

// Queue returns the notification queue collection wrapper.
func (s *Store) Queue() *NotificationQueue {
	return newNotificationQueue(s.db.Collection(model.CollectionNotificationQueue), s.now)
}

// TeamMembers returns the team member collection wrapper.
func (s *Store) TeamMembers() *TeamMembers {
	return &TeamMembers{coll: s.db.Collection(model.CollectionTeamMember), now: s.now}
}

// Trash returns the trash collection wrapper.
func (s *Store) Trash() *Trash {
	return &Trash{coll: s.db.Collection(model.CollectionTrash), now: s.now}
}

// Migrations returns the migration control wrapper.
func (s *Store) Migrations() *Migrations {
	return &Migrations{coll: s.db.Collection(model.CollectionMigrations), now: s.now}
}

// Webhooks returns the webhook collection wrapper.
func (s *Store) Webhooks() *Webhooks {
	return &Webhooks{coll: s.db.Collection(model.CollectionWebhooks)}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
