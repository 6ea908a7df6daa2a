package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/notify"
	"github.com/manav03panchal/livedesk/internal/parser"
	"github.com/manav03panchal/livedesk/internal/queue"
	"github.com/manav03panchal/livedesk/internal/runtime"
	"github.com/manav03panchal/livedesk/internal/tui"
	"github.com/manav03panchal/livedesk/internal/validate"
)

// Queue command flags.
var (
	queueFlagRID     string
	queueFlagMID     string
	queueFlagAt      string
	queueFlagIn      string
	queueFlagStale   string
	queueFlagForce   bool
	queueFlagBatch   int
	queueFlagRefresh string
)

// queueCmd represents the queue command.
var queueCmd = &cobra.Command{
	Use:     "queue [command]",
	Aliases: []string{"q", "nq"},
	Short:   "Inspect and manage the notification queue",
	Long: `Inspect and manage the per-user notification queue the daemon drains.

Every job belongs to a user and carries one or more push or email items.
Jobs are claimed oldest first; a claim older than queue.stale_after may be
taken over by another worker.

Examples:
  livedesk queue push user1 title=Hello body='New message'
  livedesk queue push user1 email subject=Digest --at 'tomorrow at 9am'
  livedesk queue list user1
  livedesk queue claim --stale 5m
  livedesk queue stats
  livedesk queue watch`,
	RunE: runQueueStats,
}

var queuePushCmd = &cobra.Command{
	Use:     "push UID [push|email] [KEY=VALUE...]",
	Aliases: []string{"enqueue", "add"},
	Short:   "Queue a notification for a user",
	Long: `Queue a notification for a user. Items start with 'push' or 'email'
followed by KEY=VALUE data; data before any type word is a push item.

Examples:
  livedesk queue push user1 title=Hello body='New message'
  livedesk queue push user1 push title=Hi email subject=Hi to=a@example.com
  livedesk queue push user1 title=Later --in 30m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQueuePush,
}

var queueListCmd = &cobra.Command{
	Use:     "list [UID]",
	Aliases: []string{"ls"},
	Short:   "List queued jobs, optionally for one user",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runQueueList,
}

var queueShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a queued job",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueShow,
}

var queueClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim the oldest eligible job",
	Long: `Claim the oldest eligible job and mark it sending. The claim is
released with 'queue release' or expires after the stale window.`,
	Args: cobra.NoArgs,
	RunE: runQueueClaim,
}

var queueReleaseCmd = &cobra.Command{
	Use:   "release ID",
	Short: "Release a claimed job so it can be claimed again",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRelease,
}

var queueFailCmd = &cobra.Command{
	Use:   "fail ID REASON...",
	Short: "Mark a job as failed; failed jobs are never claimed",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQueueFail,
}

var queueDoneCmd = &cobra.Command{
	Use:     "done ID",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove a delivered job",
	Args:    cobra.ExactArgs(1),
	RunE:    runQueueDone,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear UID",
	Short: "Delete every job of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueClear,
}

var queueClearScheduleCmd = &cobra.Command{
	Use:     "clear-schedule UID",
	Aliases: []string{"flush"},
	Short:   "Make every scheduled job of a user due now",
	Args:    cobra.ExactArgs(1),
	RunE:    runQueueClearSchedule,
}

var queueDeliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Run one delivery pass to the enabled webhooks",
	Args:  cobra.NoArgs,
	RunE:  runQueueDeliver,
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count queued jobs by state",
	Args:  cobra.NoArgs,
	RunE:  runQueueStats,
}

var queueWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the queue and upcoming business-hour triggers",
	Args:  cobra.NoArgs,
	RunE:  runQueueWatch,
}

func init() {
	queuePushCmd.Flags().StringVar(&queueFlagRID, "rid", "", "Room id the notification belongs to")
	queuePushCmd.Flags().StringVar(&queueFlagMID, "mid", "", "Message id the notification belongs to")
	queuePushCmd.Flags().StringVar(&queueFlagAt, "at", "", "Deliver at a time (e.g. '17:00', 'tomorrow at 9am', '+2h')")
	queuePushCmd.Flags().StringVar(&queueFlagIn, "in", "", "Deliver after a delay (e.g. 30m, 1h30m)")

	queueClaimCmd.Flags().StringVar(&queueFlagStale, "stale", "", "Claim window (default queue.stale_after)")
	queueStatsCmd.Flags().StringVar(&queueFlagStale, "stale", "", "Claim window (default queue.stale_after)")
	queueClearCmd.Flags().BoolVar(&queueFlagForce, "force", false, "Skip confirmation")
	queueDeliverCmd.Flags().IntVar(&queueFlagBatch, "batch", 0, "Jobs to handle (default queue.batch_size)")
	queueWatchCmd.Flags().StringVar(&queueFlagRefresh, "refresh", "", "Refresh interval (default 2s)")

	queueCmd.AddCommand(queuePushCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueShowCmd)
	queueCmd.AddCommand(queueClaimCmd)
	queueCmd.AddCommand(queueReleaseCmd)
	queueCmd.AddCommand(queueFailCmd)
	queueCmd.AddCommand(queueDoneCmd)
	queueCmd.AddCommand(queueClearCmd)
	queueCmd.AddCommand(queueClearScheduleCmd)
	queueCmd.AddCommand(queueDeliverCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueWatchCmd)

	rootCmd.AddCommand(queueCmd)
}

// staleCutoff resolves the --stale flag against the configured window.
func staleCutoff() (time.Time, error) {
	if queueFlagStale == "" {
		return ctx.StaleCutoff(), nil
	}
	window, err := parser.ParsePositiveDuration("stale", queueFlagStale)
	if err != nil {
		return time.Time{}, err
	}
	return queue.StaleCutoff(ctx.Now(), window), nil
}

func runQueuePush(cmd *cobra.Command, args []string) error {
	uid := args[0]
	if err := validate.ID("uid", uid); err != nil {
		return err
	}
	for _, v := range []struct{ field, id string }{{"rid", queueFlagRID}, {"mid", queueFlagMID}} {
		if v.id == "" {
			continue
		}
		if err := validate.ID(v.field, v.id); err != nil {
			return err
		}
	}

	items, err := parser.ParseItems(args[1:])
	if err != nil {
		return err
	}
	for _, item := range items {
		for k, v := range item.Data {
			if err := validate.ItemValue(k, v); err != nil {
				return err
			}
		}
	}

	now := ctx.Now()
	schedule, err := parser.ParseSchedule(queueFlagAt, queueFlagIn, now)
	if err != nil {
		return err
	}

	job := model.NewNotificationJob(uid, queueFlagRID, queueFlagMID, items...)
	job.Schedule = schedule
	if err := ctx.Queue.Enqueue(cmd.Context(), job); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("queued", job)
	}
	cli := ctx.CLIFormatter()
	msg := "Queued " + cli.Name(job.ID) + " for " + uid
	if schedule != nil {
		msg += " (" + parser.FormatTimeUntil(*schedule, now) + ")"
	}
	cli.Success(msg)
	return nil
}

func runQueueList(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	var (
		jobs []*model.NotificationJob
		err  error
	)
	if len(args) == 1 {
		if err := validate.ID("uid", args[0]); err != nil {
			return err
		}
		jobs, err = ctx.Queue.FindByUser(c, args[0])
	} else {
		jobs, err = ctx.Queue.List(c)
	}
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintList("jobs", jobs, len(jobs), 0)
	}
	ctx.CLIFormatter().PrintJobs(jobs, ctx.Now(), ctx.StaleCutoff())
	return nil
}

// findJob loads a job or returns a not-found error.
func findJob(c context.Context, id string) (*model.NotificationJob, error) {
	if err := validate.ID("id", id); err != nil {
		return nil, err
	}
	job, err := ctx.Queue.Get(c, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, runtime.NotFound(lderrors.ErrJobNotFound, id)
	}
	return job, nil
}

func runQueueShow(cmd *cobra.Command, args []string) error {
	job, err := findJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("ok", job)
	}
	ctx.CLIFormatter().PrintJob(job, ctx.Now(), ctx.StaleCutoff())
	return nil
}

func runQueueClaim(cmd *cobra.Command, args []string) error {
	cutoff, err := staleCutoff()
	if err != nil {
		return err
	}
	job, err := ctx.Queue.ClaimNext(cmd.Context(), cutoff)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		if job == nil {
			return ctx.JSONFormatter().PrintResult("empty", nil)
		}
		return ctx.JSONFormatter().PrintResult("claimed", job)
	}
	cli := ctx.CLIFormatter()
	if job == nil {
		cli.Muted("Nothing to claim.")
		return nil
	}
	cli.Success("Claimed " + cli.Name(job.ID))
	cli.PrintJob(job, ctx.Now(), cutoff)
	return nil
}

func runQueueRelease(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	job, err := findJob(c, args[0])
	if err != nil {
		return err
	}
	if err := ctx.Queue.Release(c, job.ID); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("released", map[string]string{"id": job.ID})
	}
	ctx.CLIFormatter().Success("Released " + job.ID)
	return nil
}

func runQueueFail(cmd *cobra.Command, args []string) error {
	c := cmd.Context()
	job, err := findJob(c, args[0])
	if err != nil {
		return err
	}
	reason := validate.SanitizeText(strings.Join(args[1:], " "))
	if err := validate.NonEmpty("reason", reason); err != nil {
		return err
	}
	if err := ctx.Queue.MarkFailed(c, job.ID, reason); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("failed", map[string]string{"id": job.ID, "error": reason})
	}
	ctx.CLIFormatter().Warning("Marked " + job.ID + " failed: " + reason)
	return nil
}

func runQueueDone(cmd *cobra.Command, args []string) error {
	if err := validate.ID("id", args[0]); err != nil {
		return err
	}
	if err := ctx.Queue.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("removed", map[string]string{"id": args[0]})
	}
	ctx.CLIFormatter().Success("Removed " + args[0])
	return nil
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	uid := args[0]
	if err := validate.ID("uid", uid); err != nil {
		return err
	}
	if !queueFlagForce {
		ok, err := confirm("Delete every queued notification of " + uid + "?")
		if err != nil {
			return err
		}
		if !ok {
			ctx.Formatter.Println("Cancelled.")
			return nil
		}
	}

	n, err := ctx.Queue.ClearQueue(cmd.Context(), uid)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCount("cleared", n)
	}
	ctx.CLIFormatter().Success("Deleted " + itoa(n) + " jobs of " + uid)
	return nil
}

func runQueueClearSchedule(cmd *cobra.Command, args []string) error {
	uid := args[0]
	if err := validate.ID("uid", uid); err != nil {
		return err
	}
	n, err := ctx.Queue.ClearSchedule(cmd.Context(), uid)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCount("flushed", n)
	}
	ctx.CLIFormatter().Success("Made " + itoa(n) + " scheduled jobs of " + uid + " due")
	return nil
}

func runQueueDeliver(cmd *cobra.Command, args []string) error {
	dispatcher := notify.NewDispatcherWithClient(ctx.Webhooks, notify.NewHTTPClientWithConfig(ctx.Config.HTTP))
	worker := notify.NewWorker(ctx.Queue, dispatcher)
	worker.Now = ctx.Now
	if queueFlagBatch > 0 {
		worker.BatchSize = queueFlagBatch
	}

	handled := worker.RunOnce(cmd.Context())
	stats := worker.Stats()

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("delivered", stats)
	}
	cli := ctx.CLIFormatter()
	if handled == 0 {
		cli.Muted("Nothing to deliver.")
		return nil
	}
	cli.Title("Delivery pass")
	cli.Field("Claimed", itoa(stats.Claimed))
	cli.Field("Sent", itoa(stats.Sent))
	cli.Field("Failed", itoa(stats.Failed))
	cli.Field("Deferred", itoa(stats.Deferred))
	cli.Field("Flushed", itoa(stats.Flushed))
	return nil
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	cutoff, err := staleCutoff()
	if err != nil {
		return err
	}
	stats, err := ctx.Queue.Stats(cmd.Context(), cutoff)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintResult("ok", stats)
	}
	ctx.CLIFormatter().PrintQueueStats(stats)
	return nil
}

func runQueueWatch(cmd *cobra.Command, args []string) error {
	loc, err := ctx.Location()
	if err != nil {
		return err
	}
	cfg := tui.WatchConfig{
		Stats: func(c context.Context) (queue.Stats, error) {
			return ctx.Queue.Stats(c, ctx.StaleCutoff())
		},
		Table: func(c context.Context) (businesshours.ScheduleTable, error) {
			return ctx.BusinessHours.ComputeScheduleTable(c)
		},
		Location: loc,
		Now:      ctx.Now,
	}
	if queueFlagRefresh != "" {
		if cfg.RefreshInterval, err = parser.ParsePositiveDuration("refresh", queueFlagRefresh); err != nil {
			return err
		}
	}
	return tui.RunWatch(cfg)
}
