// Package notify delivers queued notification jobs to webhook destinations.
//
// A Worker claims jobs from a queue.Store, a Dispatcher renders each item
// and fans it out to the enabled webhooks, and HTTPClient posts the payloads
// behind a per-host circuit breaker.
package notify

import (
	"github.com/manav03panchal/livedesk/internal/model"
)

// Formatter formats notifications for a specific webhook type.
type Formatter interface {
	// Format converts a notification into the webhook-specific payload.
	Format(n *model.Notification) ([]byte, error)

	// ContentType returns the HTTP Content-Type for the payload.
	ContentType() string
}

// GetFormatter returns the appropriate formatter for a webhook type.
func GetFormatter(webhookType string) Formatter {
	switch webhookType {
	case model.WebhookTypeDiscord:
		return &DiscordFormatter{}
	case model.WebhookTypeSlack:
		return &SlackFormatter{}
	case model.WebhookTypeTeams:
		return &TeamsFormatter{}
	case model.WebhookTypeGeneric:
		return &GenericFormatter{}
	default:
		return &GenericFormatter{}
	}
}

// brand labels every rendered message.
const brand = "livedesk"

// colorOf returns the explicit color or the type default.
func colorOf(n *model.Notification) int {
	if n.Color != 0 {
		return n.Color
	}
	return model.DefaultColorForType(n.Type)
}

// footer renders the brand plus the notification time.
func footer(n *model.Notification) string {
	return brand + " | " + n.Timestamp.Format("Jan 2, 15:04")
}
