package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
)

// WebhookStore is the set of delivery destinations.
type WebhookStore interface {
	Create(ctx context.Context, webhook *model.Webhook) error
	Get(ctx context.Context, name string) (*model.Webhook, error)
	List(ctx context.Context) ([]*model.Webhook, error)
	ListEnabled(ctx context.Context) ([]*model.Webhook, error)
	Delete(ctx context.Context, name string) error
	SetEnabled(ctx context.Context, name string, enabled bool) error
	UpdateLastUsed(ctx context.Context, name string, lastErr error) error
}

// Dispatcher sends notifications to all enabled webhooks.
type Dispatcher struct {
	webhooks   WebhookStore
	httpClient *HTTPClient
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(webhooks WebhookStore) *Dispatcher {
	return &Dispatcher{
		webhooks:   webhooks,
		httpClient: NewHTTPClient(),
	}
}

// NewDispatcherWithClient creates a dispatcher that sends through client.
func NewDispatcherWithClient(webhooks WebhookStore, client *HTTPClient) *Dispatcher {
	return &Dispatcher{webhooks: webhooks, httpClient: client}
}

// DispatchResult contains the result of dispatching to a single webhook.
type DispatchResult struct {
	WebhookName string
	Success     bool
	StatusCode  int
	Duration    time.Duration
	Error       error
}

// Deliver renders every item of job and sends it to all enabled webhooks.
// It fails when any destination fails, so the caller can mark the job.
// Having no webhooks configured is not a failure.
func (d *Dispatcher) Deliver(ctx context.Context, job *model.NotificationJob) error {
	var failures []string
	recoverable := true
	for _, item := range job.Items {
		n := model.NotificationFromItem(job, item)
		for _, r := range d.SendNotification(ctx, n) {
			if r.Success {
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", r.WebhookName, r.Error))
			recoverable = recoverable && lderrors.IsRecoverableError(r.Error)
			logging.WarnContext(ctx, "webhook delivery failed",
				logging.KeyJobID, job.ID,
				logging.KeyWebhook, r.WebhookName,
				logging.KeyError, r.Error)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	err := errors.New(strings.Join(failures, "; "))
	if recoverable {
		// every destination is only temporarily unavailable
		return lderrors.NewRecoverableError("delivery deferred: "+err.Error(), err, 0)
	}
	return err
}

// SendNotification sends a notification to all enabled webhooks.
func (d *Dispatcher) SendNotification(ctx context.Context, n *model.Notification) []DispatchResult {
	webhooks, err := d.webhooks.ListEnabled(ctx)
	if err != nil {
		return []DispatchResult{{
			WebhookName: "all",
			Success:     false,
			Error:       fmt.Errorf("failed to list webhooks: %w", err),
		}}
	}

	if len(webhooks) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	results := make([]DispatchResult, len(webhooks))

	for i, webhook := range webhooks {
		wg.Add(1)
		go func(idx int, wh *model.Webhook) {
			defer wg.Done()
			results[idx] = d.sendToWebhook(ctx, n, wh)
		}(i, webhook)
	}

	wg.Wait()
	return results
}

// sendToWebhook sends a notification to a single webhook.
func (d *Dispatcher) sendToWebhook(ctx context.Context, n *model.Notification, webhook *model.Webhook) DispatchResult {
	result := DispatchResult{
		WebhookName: webhook.Name,
	}

	var formatter Formatter
	if webhook.Type == model.WebhookTypeGeneric && webhook.Template != "" {
		formatter = NewGenericFormatter(webhook.Template)
	} else {
		formatter = GetFormatter(webhook.Type)
	}

	payload, err := formatter.Format(n)
	if err != nil {
		result.Error = fmt.Errorf("failed to format notification: %w", err)
		d.updateWebhookStatus(ctx, webhook.Name, result.Error)
		return result
	}

	sendResult := d.httpClient.Send(ctx, webhook.URL, formatter.ContentType(), payload)

	result.StatusCode = sendResult.StatusCode
	result.Duration = sendResult.Duration
	result.Error = sendResult.Error
	result.Success = sendResult.Error == nil

	d.updateWebhookStatus(ctx, webhook.Name, sendResult.Error)

	return result
}

// updateWebhookStatus updates the last used timestamp and error for a webhook.
func (d *Dispatcher) updateWebhookStatus(ctx context.Context, name string, err error) {
	if uerr := d.webhooks.UpdateLastUsed(ctx, name, err); uerr != nil {
		logging.DebugLog("webhook status not recorded", logging.KeyWebhook, name, logging.KeyError, uerr)
	}
}

// SendToSingle sends a notification to a single webhook by name.
func (d *Dispatcher) SendToSingle(ctx context.Context, n *model.Notification, webhookName string) DispatchResult {
	webhook, err := d.webhooks.Get(ctx, webhookName)
	if err != nil {
		return DispatchResult{
			WebhookName: webhookName,
			Success:     false,
			Error:       fmt.Errorf("webhook not found: %w", err),
		}
	}

	return d.sendToWebhook(ctx, n, webhook)
}

// TestWebhook sends a test notification to a specific webhook.
func (d *Dispatcher) TestWebhook(ctx context.Context, webhookName string) DispatchResult {
	testNotification := model.NewNotification(
		model.NotifyTest,
		"livedesk test",
		"This is a test notification from livedesk. If you see this, your webhook is configured correctly!",
	).WithField("Webhook", webhookName).WithField("Time", time.Now().Format("3:04 PM"))

	return d.SendToSingle(ctx, testNotification, webhookName)
}

// CountEnabledWebhooks returns the number of enabled webhooks.
func (d *Dispatcher) CountEnabledWebhooks(ctx context.Context) int {
	webhooks, err := d.webhooks.ListEnabled(ctx)
	if err != nil {
		return 0
	}
	return len(webhooks)
}
