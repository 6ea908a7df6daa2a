// Package cmd provides the CLI commands for livedesk.
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/livedesk/internal/config"
	"github.com/manav03panchal/livedesk/internal/daemon"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/output"
	"github.com/manav03panchal/livedesk/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagConfig string
	flagFormat string
	flagColor  string
	flagDebug  bool
)

// ctx is the shared runtime context.
var ctx *runtime.Context

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "livedesk",
	Short: "Business hours and notification queue manager for live support desks",
	Long: `livedesk keeps a support desk's business hours, its queued push and
email notifications and its team roles in one store, and runs a daemon that
opens and closes departments on schedule and delivers queued notifications.

Examples:
  livedesk hours add support --tz America/Sao_Paulo --open Monday=08:00-17:00
  livedesk hours schedule
  livedesk queue push user1 title=Hello body='New message'
  livedesk queue stats
  livedesk team add sales user1 --roles owner
  livedesk daemon start`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsRuntime(cmd) {
			return nil
		}

		return openRuntime(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ctx != nil {
			err := ctx.Close()
			ctx = nil
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: show current status
		return runStatus(cmd, args)
	},
}

// skipsRuntime reports whether cmd runs without opening the store.
func skipsRuntime(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "completion", "help", "version":
		return true
	}
	return cmd.Annotations[annotationNoStore] == "true"
}

// annotationNoStore marks commands that only need the configuration.
const annotationNoStore = "livedesk/no-store"

// openRuntime loads the configuration, initializes logging and opens the
// store into ctx.
func openRuntime(cmd *cobra.Command) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	initLogging(cfg)

	// Parse format flag
	var format output.Format
	switch flagFormat {
	case "json":
		format = output.FormatJSON
	case "plain":
		format = output.FormatPlain
	default:
		format = output.FormatCLI
	}

	// Parse color flag
	var colorMode output.ColorMode
	switch flagColor {
	case "always":
		colorMode = output.ColorAlways
	case "never":
		colorMode = output.ColorNever
	default:
		colorMode = output.ColorAuto
	}

	opts := runtime.DefaultOptions()
	opts.Config = cfg
	opts.Format = format
	opts.ColorMode = colorMode
	opts.Debug = flagDebug

	ctx, err = runtime.NewWithContext(cmd.Context(), opts)
	return err
}

func initLogging(cfg *config.RuntimeConfig) {
	if flagDebug {
		logging.InitDebug()
		return
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	logging.Init(logging.Config{
		Level:  level,
		JSON:   cfg.Log.Format == "json",
		Output: os.Stderr,
	})
}

// statusView is the JSON shape of the root command.
type statusView struct {
	Driver        string         `json:"driver"`
	BusinessHours int            `json:"business_hours"`
	Webhooks      int            `json:"webhooks"`
	Queue         any            `json:"queue"`
	Daemon        *daemon.Status `json:"daemon"`
}

// runStatus shows the store, queue and daemon at a glance.
func runStatus(cmd *cobra.Command, args []string) error {
	c := cmd.Context()

	hours, err := ctx.BusinessHours.List(c)
	if err != nil {
		return err
	}
	hooks, err := ctx.Webhooks.List(c)
	if err != nil {
		return err
	}
	stats, err := ctx.Queue.Stats(c, ctx.StaleCutoff())
	if err != nil {
		return err
	}
	status := daemon.NewDaemon(nil).GetStatus()

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(statusView{
			Driver:        ctx.Driver,
			BusinessHours: len(hours),
			Webhooks:      len(hooks),
			Queue:         stats,
			Daemon:        status,
		})
	}

	cli := ctx.CLIFormatter()
	cli.Title("livedesk")
	cli.Field("Store", ctx.Driver)
	cli.Field("Business hours", cli.Accent(itoa(len(hours))))
	cli.Field("Webhooks", itoa(len(hooks)))
	if status.Running {
		cli.Field("Daemon", cli.Accent("running")+" (pid "+itoa(status.PID)+")")
	} else {
		cli.Field("Daemon", "stopped")
	}
	cli.Println("")
	cli.PrintQueueStats(stats)
	return nil
}

// Execute adds all child commands to the root command and runs it. The
// returned code is the process exit status.
func Execute() int {
	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return runtime.ExitOK
	}
	report(err)
	if ctx != nil {
		_ = ctx.Close()
		ctx = nil
	}
	return runtime.ExitCode(err)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("livedesk %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
		cmd.Println("")
		cmd.Println("Licensed under SEGV License v1.0")
	},
}

// report prints err in the active output format. Before the runtime exists
// it falls back to plain stderr.
func report(err error) {
	if ctx != nil {
		ctx.ReportError(err)
		return
	}
	if flagFormat == "json" {
		f := output.NewFormatter()
		f.Writer = os.Stderr
		_ = output.NewJSONFormatter(f).PrintError("error", err.Error(), "")
		return
	}
	if flagDebug {
		os.Stderr.WriteString(lderrors.FormatDebugError(err))
		return
	}
	os.Stderr.WriteString("Error: " + lderrors.FormatUserError(err) + "\n")
}
