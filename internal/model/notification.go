package model

import (
	"sort"
	"time"
)

// NotificationType defines what a rendered notification is about.
type NotificationType string

// Notification types.
const (
	NotifyPush          NotificationType = "push"
	NotifyEmail         NotificationType = "email"
	NotifyBusinessOpen  NotificationType = "business_hours_open"
	NotifyBusinessClose NotificationType = "business_hours_close"
	NotifyTest          NotificationType = "test"
)

// Notification is a job item rendered for a webhook destination.
type Notification struct {
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Color     int               `json:"color,omitempty"`
}

// NewNotification creates a new notification.
func NewNotification(t NotificationType, title, message string) *Notification {
	return &Notification{
		Type:      t,
		Title:     title,
		Message:   message,
		Fields:    make(map[string]string),
		Timestamp: time.Now(),
	}
}

// WithField adds a field to the notification.
func (n *Notification) WithField(key, value string) *Notification {
	if n.Fields == nil {
		n.Fields = make(map[string]string)
	}
	n.Fields[key] = value
	return n
}

// WithColor sets the embed color.
func (n *Notification) WithColor(color int) *Notification {
	n.Color = color
	return n
}

// FieldKeys returns field names in a stable order for rendering.
func (n *Notification) FieldKeys() []string {
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Notification colors (Discord-compatible hex values).
const (
	ColorSuccess = 0x57F287
	ColorWarning = 0xFEE75C
	ColorInfo    = 0x5865F2
	ColorError   = 0xED4245
	ColorPrimary = 0x3498DB
)

// DefaultColorForType returns the default color for a notification type.
func DefaultColorForType(t NotificationType) int {
	switch t {
	case NotifyPush:
		return ColorPrimary
	case NotifyEmail:
		return ColorInfo
	case NotifyBusinessOpen:
		return ColorSuccess
	case NotifyBusinessClose:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// TypeLabel returns a human-readable label for the notification type.
func (n *Notification) TypeLabel() string {
	switch n.Type {
	case NotifyPush:
		return "Push Notification"
	case NotifyEmail:
		return "Email Notification"
	case NotifyBusinessOpen:
		return "Business Hours Opened"
	case NotifyBusinessClose:
		return "Business Hours Closed"
	case NotifyTest:
		return "Test Notification"
	default:
		return "Notification"
	}
}

// NotificationFromItem renders a queued item for delivery.
func NotificationFromItem(job *NotificationJob, item NotificationItem) *Notification {
	t := NotifyPush
	if item.Type == ItemEmail {
		t = NotifyEmail
	}

	title := item.Data["title"]
	if title == "" {
		title = "New message"
	}
	n := NewNotification(t, title, item.Data["message"])
	n.Timestamp = job.TS
	n.WithField("User", job.UID)
	if job.RID != "" {
		n.WithField("Room", job.RID)
	}
	for k, v := range item.Data {
		if k == "title" || k == "message" {
			continue
		}
		n.WithField(k, v)
	}
	return n.WithColor(DefaultColorForType(t))
}
