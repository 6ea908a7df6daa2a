package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/livedesk/internal/config"
	"github.com/manav03panchal/livedesk/internal/daemon"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/notify"
	"github.com/manav03panchal/livedesk/internal/output"
)

// Daemon command flags.
var (
	daemonStartFlagForeground bool
	daemonLogsFlagTail        int
	daemonLogsFlagFollow      bool
	daemonInstallFlagForce    bool
)

// noStore marks commands that must not open the store. The daemon holds
// the store lock while it runs.
var noStore = map[string]string{annotationNoStore: "true"}

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:     "daemon [command]",
	Aliases: []string{"d", "bg", "service"},
	Short:   "Manage the background daemon",
	Long: `Manage the livedesk background daemon. The daemon fires business hour
open and close triggers, refreshes the schedule table, delivers queued
notifications through the configured webhooks and serves /healthz and
/metrics.

Examples:
  livedesk daemon start
  livedesk daemon status
  livedesk daemon reload
  livedesk daemon logs --tail 20`,
	Annotations: noStore,
	RunE:        runDaemonStatus,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long: `Start the livedesk background daemon.

Examples:
  livedesk daemon start              # Start in background
  livedesk daemon start --foreground # Start in foreground (for debugging)`,
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:         "stop",
	Short:       "Stop the background daemon",
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show daemon status",
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runDaemonStatus,
}

var daemonReloadCmd = &cobra.Command{
	Use:         "reload",
	Short:       "Rebuild the schedule table of a running daemon",
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runDaemonReload,
}

var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	Long: `View the daemon log file.

Examples:
  livedesk daemon logs
  livedesk daemon logs --tail 50
  livedesk daemon logs --follow`,
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runDaemonLogs,
}

var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install daemon as a system service",
	Long: `Install the livedesk daemon as a service that starts on login.

On macOS this writes a launchd agent to ~/Library/LaunchAgents.
On Linux this writes a systemd user unit to ~/.config/systemd/user.

Examples:
  livedesk daemon install
  livedesk daemon install --force   # Reinstall if already installed`,
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runDaemonInstall,
}

var daemonUninstallCmd = &cobra.Command{
	Use:         "uninstall",
	Short:       "Uninstall daemon system service",
	Args:        cobra.NoArgs,
	Annotations: noStore,
	RunE:        runDaemonUninstall,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlagForeground, "foreground", false,
		"Run in foreground (don't daemonize)")

	daemonLogsCmd.Flags().IntVarP(&daemonLogsFlagTail, "tail", "n", 20,
		"Number of lines to show")
	daemonLogsCmd.Flags().BoolVarP(&daemonLogsFlagFollow, "follow", "f", false,
		"Follow log output (like tail -f)")

	daemonInstallCmd.Flags().BoolVar(&daemonInstallFlagForce, "force", false,
		"Force reinstall if already installed")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonReloadCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	daemonCmd.AddCommand(daemonInstallCmd)
	daemonCmd.AddCommand(daemonUninstallCmd)

	rootCmd.AddCommand(daemonCmd)
}

// daemonCLI loads the configuration and returns a formatter for daemon
// commands, which run without the store.
func daemonCLI() (*output.CLIFormatter, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	initLogging(cfg)
	return output.NewCLIFormatter(configFormatter()), nil
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	if daemonStartFlagForeground {
		return runDaemonForeground(cmd)
	}

	cli, err := daemonCLI()
	if err != nil {
		return err
	}
	d := daemon.NewDaemon(nil)
	d.SetDebug(flagDebug)
	d.ConfigPath = flagConfig

	pid, err := d.StartBackground()
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return lderrors.NewUserError("Daemon is already running (PID "+itoa(pid)+")",
			"Stop it first with 'livedesk daemon stop'")
	}
	if err != nil {
		return err
	}

	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]any{"status": "started", "pid": pid})
	}
	cli.Success("Daemon started (PID " + itoa(pid) + ")")
	return nil
}

// runDaemonForeground opens the store and runs the daemon until a shutdown
// signal.
func runDaemonForeground(cmd *cobra.Command) error {
	if err := openRuntime(cmd); err != nil {
		return err
	}

	d := daemon.NewDaemon(ctx)
	d.SetDebug(ctx.Debug)
	d.SetVersion(Version)

	if d.IsRunning() {
		status := d.GetStatus()
		return lderrors.NewUserError("Daemon is already running (PID "+itoa(status.PID)+")",
			"Stop it first with 'livedesk daemon stop'")
	}

	dispatcher := notify.NewDispatcher(ctx.Webhooks)
	if dispatcher.CountEnabledWebhooks(cmd.Context()) == 0 && !ctx.IsJSON() {
		ctx.CLIFormatter().Warning("No webhooks enabled. Add one with: livedesk webhook add")
	}
	if !ctx.IsJSON() {
		ctx.Formatter.Println("Starting livedesk daemon (foreground mode)...")
	}
	return d.Start(cmd.Context())
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	cli, err := daemonCLI()
	if err != nil {
		return err
	}
	d := daemon.NewDaemon(nil)
	pid := d.GetStatus().PID

	if err := d.Stop(); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			if cli.Format == output.FormatJSON {
				return cli.JSON(map[string]string{"status": "not_running"})
			}
			cli.Muted("Daemon is not running.")
			return nil
		}
		return err
	}

	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]any{"status": "stopped", "pid": pid})
	}
	cli.Success("Daemon stopped (was PID " + itoa(pid) + ")")
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	cli, err := daemonCLI()
	if err != nil {
		return err
	}
	status := daemon.NewDaemon(nil).GetStatus()

	if cli.Format == output.FormatJSON {
		return cli.JSON(status)
	}

	cli.Title("Daemon")
	if !status.Running {
		cli.Field("Status", cli.State("stopped"))
		cli.Println("")
		cli.Muted("Start with: livedesk daemon start")
		return nil
	}
	cli.Field("Status", cli.State("running"))
	cli.Field("PID", itoa(status.PID))
	if status.Uptime != "" {
		cli.Field("Uptime", status.Uptime)
	}
	if status.Driver != "" {
		cli.Field("Store", status.Driver)
	}
	if status.ListenAddr != "" {
		cli.Field("Listening", "http://"+status.ListenAddr)
	}
	return nil
}

func runDaemonReload(cmd *cobra.Command, args []string) error {
	cli, err := daemonCLI()
	if err != nil {
		return err
	}
	if err := daemon.NewDaemon(nil).Reload(); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			return lderrors.NewUserError("Daemon is not running", "Start it with 'livedesk daemon start'")
		}
		return err
	}
	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]string{"status": "reloading"})
	}
	cli.Success("Reload requested")
	return nil
}

func runDaemonLogs(cmd *cobra.Command, args []string) error {
	cli, err := daemonCLI()
	if err != nil {
		return err
	}
	logPath := daemon.GetLogPath()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		cli.Muted("No log file found.")
		cli.Field("Log path", logPath)
		return nil
	}

	lines, err := daemon.TailLog(logPath, daemonLogsFlagTail)
	if err != nil {
		return err
	}
	for _, line := range lines {
		cli.Println(line)
	}
	if !daemonLogsFlagFollow {
		return nil
	}
	return followLog(cmd.Context(), cli, logPath)
}

// followLog prints lines appended to the log at path until c is canceled.
func followLog(c context.Context, cli *output.CLIFormatter, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	offset := info.Size()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.Done():
			return nil
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() < offset {
			// Rotated.
			offset = 0
		}
		if info.Size() == offset {
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		buf := make([]byte, info.Size()-offset)
		n, err := f.ReadAt(buf, offset)
		_ = f.Close()
		if n > 0 {
			cli.Printf("%s", buf[:n])
			offset += int64(n)
		}
		if err != nil && n == 0 {
			return err
		}
	}
}

func runDaemonInstall(cmd *cobra.Command, args []string) error {
	cli, err := daemonCLI()
	if err != nil {
		return err
	}
	mgr, err := daemon.NewServiceManager(flagConfig)
	if err != nil {
		return err
	}

	if mgr.IsInstalled() {
		if !daemonInstallFlagForce {
			if cli.Format == output.FormatJSON {
				return cli.JSON(map[string]string{"status": "already_installed", "path": mgr.Path()})
			}
			cli.Muted("Service is already installed. Use --force to reinstall.")
			return nil
		}
		if err := mgr.Uninstall(); err != nil {
			return err
		}
	}

	if err := mgr.Install(); err != nil {
		return err
	}

	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]string{"status": "installed", "path": mgr.Path()})
	}
	cli.Success("Service installed")
	cli.Field("Unit", mgr.Path())
	cli.Muted("The daemon will start automatically when you log in.")
	return nil
}

func runDaemonUninstall(cmd *cobra.Command, args []string) error {
	cli, err := daemonCLI()
	if err != nil {
		return err
	}
	mgr, err := daemon.NewServiceManager(flagConfig)
	if err != nil {
		return err
	}

	if !mgr.IsInstalled() {
		if cli.Format == output.FormatJSON {
			return cli.JSON(map[string]string{"status": "not_installed"})
		}
		cli.Muted("Service is not installed.")
		return nil
	}

	if err := daemon.NewDaemon(nil).Stop(); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
		cli.Warning("Failed to stop daemon: " + err.Error())
	}
	if err := mgr.Uninstall(); err != nil {
		return err
	}

	if cli.Format == output.FormatJSON {
		return cli.JSON(map[string]string{"status": "uninstalled"})
	}
	cli.Success("Service uninstalled")
	return nil
}
