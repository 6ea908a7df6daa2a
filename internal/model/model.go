// Package model defines the persisted document shapes for livedesk.
//
// Field names in the json and bson tags are the on-disk contract shared with
// the cron scheduler, the notification sender and the admin UI. Renaming a
// tag requires a migration.
package model

import (
	"fmt"
	"strings"
)

// Model is the interface that all database models must implement.
type Model interface {
	// SetKey sets the database key for this model.
	SetKey(key string)
	// GetKey returns the database key for this model.
	GetKey() string
}

// KeyPrefix constants for database key generation.
const (
	PrefixBusinessHour = "businesshour"
	PrefixNotification = "notification"
	PrefixTeamMember   = "teammember"
	PrefixTrash        = "trash"
	PrefixMigration    = "migration"
)

// Collection names used by document stores and trash records.
const (
	CollectionBusinessHours     = "livechat_business_hours"
	CollectionNotificationQueue = "notification_queue"
	CollectionTeamMember        = "team_member"
	CollectionTrash             = "trash"
	CollectionMigrations        = "migrations"
	CollectionWebhooks          = "webhooks"
)

// GenerateKey joins a prefix and an id into a database key.
func GenerateKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// IDFromKey strips the prefix from a database key.
func IDFromKey(prefix, key string) string {
	return strings.TrimPrefix(key, prefix+":")
}
