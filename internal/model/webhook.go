package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PrefixWebhook is the database key prefix for webhooks.
const PrefixWebhook = "webhook"

// Webhook type constants.
const (
	WebhookTypeDiscord = "discord"
	WebhookTypeSlack   = "slack"
	WebhookTypeTeams   = "teams"
	WebhookTypeGeneric = "generic"
)

// Webhook is a delivery destination for queued notifications. Name doubles
// as the document id.
type Webhook struct {
	Name      string    `json:"name" bson:"_id"`
	Type      string    `json:"type" bson:"type"`
	URL       string    `json:"url" bson:"url"`
	Enabled   bool      `json:"enabled" bson:"enabled"`
	Template  string    `json:"template,omitempty" bson:"template,omitempty"` // generic webhooks only
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	LastUsed  time.Time `json:"last_used,omitempty" bson:"lastUsed,omitempty"`
	LastError string    `json:"last_error,omitempty" bson:"lastError,omitempty"`
}

// SetKey sets the database key for this webhook.
func (w *Webhook) SetKey(key string) {
	w.Name = IDFromKey(PrefixWebhook, key)
}

// GetKey returns the database key for this webhook.
func (w *Webhook) GetKey() string {
	return GenerateWebhookKey(w.Name)
}

// MaskedURL returns the URL with the token part hidden.
func (w *Webhook) MaskedURL() string {
	if len(w.URL) > 40 {
		return w.URL[:30] + "***"
	}
	return w.URL
}

// GenerateWebhookKey generates a database key for a webhook.
func GenerateWebhookKey(name string) string {
	return GenerateKey(PrefixWebhook, name)
}

// NewWebhook creates a new enabled webhook.
func NewWebhook(name, webhookType, url string) *Webhook {
	return &Webhook{
		Name:      name,
		Type:      webhookType,
		URL:       url,
		Enabled:   true,
		CreatedAt: time.Now(),
	}
}

// ValidWebhookTypes returns the list of valid webhook types.
func ValidWebhookTypes() []string {
	return []string{WebhookTypeDiscord, WebhookTypeSlack, WebhookTypeTeams, WebhookTypeGeneric}
}

// IsValidWebhookType checks if a type is valid.
func IsValidWebhookType(t string) bool {
	for _, valid := range ValidWebhookTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

var webhookNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// IsValidWebhookName checks if a webhook name is valid.
func IsValidWebhookName(name string) bool {
	if len(name) == 0 || len(name) > 50 {
		return false
	}
	return webhookNameRegex.MatchString(name)
}

// DetectWebhookType guesses the webhook type from the URL host.
func DetectWebhookType(url string) string {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "discord.com/api/webhooks"):
		return WebhookTypeDiscord
	case strings.Contains(u, "hooks.slack.com"):
		return WebhookTypeSlack
	case strings.Contains(u, "webhook.office.com"), strings.Contains(u, "outlook.office.com/webhook"):
		return WebhookTypeTeams
	default:
		return WebhookTypeGeneric
	}
}

// String implements fmt.Stringer.
func (w *Webhook) String() string {
	return fmt.Sprintf("%s (%s)", w.Name, w.Type)
}
