package model

import (
	"time"
)

// NotificationItemType is the delivery channel of a queued item.
type NotificationItemType string

// Notification item types.
const (
	ItemPush  NotificationItemType = "push"
	ItemEmail NotificationItemType = "email"
)

// NotificationItem is one outbound message carried by a job.
type NotificationItem struct {
	Type NotificationItemType `json:"type" bson:"type"`
	Data map[string]string    `json:"data,omitempty" bson:"data,omitempty"`
}

// NotificationJob is a pending outbound notification for a single user.
//
// Schedule, Sending and Error are absent (nil) unless set; their presence
// drives claim eligibility.
type NotificationJob struct {
	ID       string             `json:"_id" bson:"_id"`
	UID      string             `json:"uid" bson:"uid"`
	RID      string             `json:"rid,omitempty" bson:"rid,omitempty"`
	MID      string             `json:"mid,omitempty" bson:"mid,omitempty"`
	TS       time.Time          `json:"ts" bson:"ts"`
	Schedule *time.Time         `json:"schedule,omitempty" bson:"schedule,omitempty"`
	Sending  *time.Time         `json:"sending,omitempty" bson:"sending,omitempty"`
	Error    *string            `json:"error,omitempty" bson:"error,omitempty"`
	Items    []NotificationItem `json:"items" bson:"items"`
}

// SetKey sets the database key for this job.
func (j *NotificationJob) SetKey(key string) {
	j.ID = IDFromKey(PrefixNotification, key)
}

// GetKey returns the database key for this job.
func (j *NotificationJob) GetKey() string {
	return GenerateKey(PrefixNotification, j.ID)
}

// IsClaimed returns true while a worker holds the job.
func (j *NotificationJob) IsClaimed() bool {
	return j.Sending != nil
}

// IsFailed returns true once the job carries a terminal error.
func (j *NotificationJob) IsFailed() bool {
	return j.Error != nil
}

// IsScheduled returns true if the job waits for a future dispatch time.
func (j *NotificationJob) IsScheduled() bool {
	return j.Schedule != nil
}

// ErrorMessage returns the terminal error or an empty string.
func (j *NotificationJob) ErrorMessage() string {
	if j.Error == nil {
		return ""
	}
	return *j.Error
}

// NewNotificationJob creates a job for a user with the given items.
func NewNotificationJob(uid, rid, mid string, items ...NotificationItem) *NotificationJob {
	return &NotificationJob{
		UID:   uid,
		RID:   rid,
		MID:   mid,
		Items: items,
	}
}
