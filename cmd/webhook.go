package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/notify"
	"github.com/manav03panchal/livedesk/internal/parser"
	"github.com/manav03panchal/livedesk/internal/validate"
)

// Webhook command flags.
var (
	webhookAddFlagType     string
	webhookAddFlagTemplate string
	webhookRemoveFlagForce bool
	webhookTestFlagAll     bool
)

// webhookCmd represents the webhook command.
var webhookCmd = &cobra.Command{
	Use:     "webhook [command]",
	Aliases: []string{"w", "wh", "hook"},
	Short:   "Configure notification webhooks",
	Long: `Configure webhooks for Discord, Slack, Teams, or custom endpoints.

Webhooks receive queued push and email notifications as the daemon drains
the queue, and an announcement whenever business hours open or close.

Examples:
  livedesk webhook add discord https://discord.com/api/webhooks/...
  livedesk webhook add https://hooks.slack.com/services/...
  livedesk webhook list
  livedesk webhook test discord
  livedesk webhook disable slack
  livedesk webhook remove discord`,
	RunE: runWebhookList,
}

// webhookAddCmd adds a new webhook.
var webhookAddCmd = &cobra.Command{
	Use:   "add [NAME] URL",
	Short: "Add a new webhook",
	Long: `Add a webhook for receiving notifications. Without NAME the name is
derived from the URL host.

The webhook type is auto-detected from the URL:
  - Discord: discord.com/api/webhooks/...
  - Slack:   hooks.slack.com/services/...
  - Teams:   outlook.office.com/webhook/...
  - Generic: Any other URL

Examples:
  livedesk webhook add discord https://discord.com/api/webhooks/123/abc
  livedesk webhook add my-webhook https://example.com/hook --type generic`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWebhookAdd,
}

// webhookListCmd lists all webhooks.
var webhookListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all webhooks",
	RunE:    runWebhookList,
}

// webhookTestCmd tests a webhook.
var webhookTestCmd = &cobra.Command{
	Use:   "test [NAME]",
	Short: "Test a webhook by sending a test notification",
	Long: `Send a test notification to verify webhook configuration.

Examples:
  livedesk webhook test discord
  livedesk webhook test --all`,
	RunE: runWebhookTest,
}

// webhookRemoveCmd removes a webhook.
var webhookRemoveCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a webhook",
	Args:    cobra.ExactArgs(1),
	RunE:    runWebhookRemove,
}

// webhookEnableCmd enables a webhook.
var webhookEnableCmd = &cobra.Command{
	Use:   "enable NAME",
	Short: "Enable a webhook",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setWebhookEnabled(cmd, args[0], true) },
}

// webhookDisableCmd disables a webhook.
var webhookDisableCmd = &cobra.Command{
	Use:   "disable NAME",
	Short: "Disable a webhook",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setWebhookEnabled(cmd, args[0], false) },
}

func init() {
	// Add flags
	webhookAddCmd.Flags().StringVarP(&webhookAddFlagType, "type", "t", "",
		"Webhook type: discord, slack, teams, generic (auto-detected from URL if not specified)")
	webhookAddCmd.Flags().StringVar(&webhookAddFlagTemplate, "template", "",
		"Custom payload template (generic webhooks only)")

	webhookRemoveCmd.Flags().BoolVar(&webhookRemoveFlagForce, "force", false,
		"Skip confirmation")

	webhookTestCmd.Flags().BoolVarP(&webhookTestFlagAll, "all", "a", false,
		"Test all enabled webhooks")

	// Dynamic completion for webhook names
	webhookTestCmd.ValidArgsFunction = completeWebhookArgs
	webhookRemoveCmd.ValidArgsFunction = completeWebhookArgs
	webhookEnableCmd.ValidArgsFunction = completeWebhookArgs
	webhookDisableCmd.ValidArgsFunction = completeWebhookArgs

	// Add subcommands
	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookTestCmd)
	webhookCmd.AddCommand(webhookRemoveCmd)
	webhookCmd.AddCommand(webhookEnableCmd)
	webhookCmd.AddCommand(webhookDisableCmd)

	rootCmd.AddCommand(webhookCmd)
}

// runWebhookAdd handles the webhook add command.
func runWebhookAdd(cmd *cobra.Command, args []string) error {
	c := cmd.Context()

	var name, webhookURL string
	if len(args) == 1 {
		webhookURL = args[0]
		name = parser.WebhookNameFromURL(webhookURL)
	} else {
		name, webhookURL = args[0], args[1]
	}

	if err := validate.WebhookName(name); err != nil {
		return err
	}
	if err := validate.URL(webhookURL); err != nil {
		return err
	}
	if err := validate.WebhookType(webhookAddFlagType); err != nil {
		return err
	}

	// Check if webhook already exists
	if _, err := ctx.Webhooks.Get(c, name); err == nil {
		return lderrors.NewUserErrorWithField("name", name,
			"Webhook already exists",
			"Choose another name or remove it with 'livedesk webhook remove "+name+"'")
	} else if !errors.Is(err, lderrors.ErrWebhookNotFound) {
		return err
	}

	// Determine type
	webhookType := webhookAddFlagType
	if webhookType == "" {
		webhookType = model.DetectWebhookType(webhookURL)
	}

	webhook := model.NewWebhook(name, webhookType, webhookURL)
	if webhookAddFlagTemplate != "" {
		webhook.Template = webhookAddFlagTemplate
	}

	if err := ctx.Webhooks.Create(c, webhook); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("created", map[string]interface{}{
			"name":       webhook.Name,
			"type":       webhook.Type,
			"url":        webhook.MaskedURL(),
			"enabled":    webhook.Enabled,
			"created_at": webhook.CreatedAt,
		})
	}

	cli := ctx.CLIFormatter()
	cli.Success("Added webhook " + cli.Name(name))
	cli.Field("Type", webhook.Type)
	cli.Field("URL", webhook.MaskedURL())
	cli.Println("")
	cli.Printf("Test with: livedesk webhook test %s\n", name)

	return nil
}

// runWebhookList handles the webhook list command.
func runWebhookList(cmd *cobra.Command, args []string) error {
	webhooks, err := ctx.Webhooks.List(cmd.Context())
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		views := make([]webhookView, 0, len(webhooks))
		now := ctx.Now()
		for _, wh := range webhooks {
			views = append(views, newWebhookView(wh, now))
		}
		return ctx.JSONFormatter().PrintList("webhooks", views, len(views), 0)
	}

	ctx.CLIFormatter().PrintWebhooks(webhooks)
	return nil
}

// webhookView is the JSON shape of a webhook with its URL masked.
type webhookView struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Enabled   bool   `json:"enabled"`
	LastUsed  string `json:"last_used,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func newWebhookView(wh *model.Webhook, now time.Time) webhookView {
	v := webhookView{
		Name:      wh.Name,
		Type:      wh.Type,
		URL:       wh.MaskedURL(),
		Enabled:   wh.Enabled,
		LastError: wh.LastError,
	}
	if !wh.LastUsed.IsZero() {
		v.LastUsed = formatTimeAgo(wh.LastUsed, now)
	}
	return v
}

// testResult is the JSON shape of one webhook test.
type testResult struct {
	Webhook    string `json:"webhook"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// runWebhookTest handles the webhook test command.
func runWebhookTest(cmd *cobra.Command, args []string) error {
	dispatcher := notify.NewDispatcherWithClient(ctx.Webhooks, notify.NewHTTPClientWithConfig(ctx.Config.HTTP))
	c, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var names []string
	switch {
	case webhookTestFlagAll:
		webhooks, err := ctx.Webhooks.ListEnabled(c)
		if err != nil {
			return err
		}
		if len(webhooks) == 0 {
			return lderrors.NewUserError("No enabled webhooks to test",
				"Add one with 'livedesk webhook add NAME URL'")
		}
		for _, wh := range webhooks {
			names = append(names, wh.Name)
		}
	case len(args) == 0:
		return lderrors.NewUserError("Webhook name required",
			"Pass a webhook name or use --all")
	default:
		names = args[:1]
	}

	results := make([]testResult, 0, len(names))
	for _, name := range names {
		if !ctx.IsJSON() {
			ctx.Formatter.Printf("Testing webhook: %s\n", name)
		}
		r := dispatcher.TestWebhook(c, name)
		results = append(results, testResult{
			Webhook:    r.WebhookName,
			Success:    r.Success,
			StatusCode: r.StatusCode,
			DurationMS: r.Duration.Milliseconds(),
			Error:      errorString(r.Error),
		})
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintList("webhook_tests", results, len(results), 0)
	}

	cli := ctx.CLIFormatter()
	for _, r := range results {
		if r.Success {
			cli.Success(fmt.Sprintf("%s: delivered in %dms", r.Webhook, r.DurationMS))
		} else {
			cli.Error(fmt.Sprintf("%s: %s", r.Webhook, r.Error))
		}
	}
	return nil
}

// runWebhookRemove handles the webhook remove command.
func runWebhookRemove(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	name := args[0]

	if _, err := ctx.Webhooks.Get(c, name); err != nil {
		return err
	}

	// Confirmation (skip if --force)
	if !webhookRemoveFlagForce {
		ok, err := confirm(fmt.Sprintf("Remove webhook %q?", name))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Formatter.Println("Cancelled.")
			return nil
		}
	}

	if err := ctx.Webhooks.Delete(c, name); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("removed", map[string]string{"webhook": name})
	}
	ctx.CLIFormatter().Success("Removed webhook " + name)
	return nil
}

// setWebhookEnabled handles the webhook enable and disable commands.
func setWebhookEnabled(cmd *cobra.Command, name string, enabled bool) error {
	if err := ctx.Webhooks.SetEnabled(cmd.Context(), name, enabled); err != nil {
		return err
	}

	status := "enabled"
	if !enabled {
		status = "disabled"
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult(status, map[string]string{"webhook": name})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Webhook %s %s", name, status))
	return nil
}
