package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/config"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/notify"
	"github.com/manav03panchal/livedesk/internal/queue"
	"github.com/manav03panchal/livedesk/internal/runtime"
	"github.com/manav03panchal/livedesk/internal/scheduler"
)

// Trigger actions used in metrics and notifications.
const (
	ActionOpen  = businesshours.ActionOpen
	ActionClose = businesshours.ActionClose
)

// GroupMaintenance holds the daemon's own periodic jobs.
const GroupMaintenance = "daemon:maintenance"

// ErrNoStore is returned by Run when the daemon has no runtime context.
var ErrNoStore = errors.New("daemon needs an open store")

// Daemon manages the background daemon process.
type Daemon struct {
	rt      *runtime.Context
	pidFile *PIDFile
	version string
	debug   bool

	// ConfigPath is passed to the background process.
	ConfigPath string

	scheduler  *scheduler.Scheduler
	manager    *businesshours.Manager
	dispatcher *notify.Dispatcher
	worker     *notify.Worker
	health     *HealthChecker
	metrics    *Metrics
	server     *http.Server

	mu         sync.Mutex
	addr       string
	refreshErr error
	ready      chan struct{}
	startedAt  time.Time
}

// Status represents the daemon status.
type Status struct {
	Running    bool      `json:"running"`
	PID        int       `json:"pid,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Uptime     string    `json:"uptime,omitempty"`
	ListenAddr string    `json:"listen_addr,omitempty"`
	Driver     string    `json:"driver,omitempty"`
}

// NewDaemon creates a daemon manager. rt may be nil for commands that only
// inspect or signal a running daemon.
func NewDaemon(rt *runtime.Context) *Daemon {
	return &Daemon{
		rt:      rt,
		pidFile: NewPIDFile(),
		version: "dev",
		ready:   make(chan struct{}),
	}
}

// SetDebug enables debug mode.
func (d *Daemon) SetDebug(debug bool) {
	d.debug = debug
}

// SetVersion sets the version reported by /healthz.
func (d *Daemon) SetVersion(version string) {
	d.version = version
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() *Status {
	status := &Status{}

	pid := d.pidFile.GetRunningPID()
	if pid > 0 {
		status.Running = true
		status.PID = pid

		if state, err := readState(); err == nil {
			status.StartedAt = state.StartedAt
			status.Uptime = formatUptime(time.Since(state.StartedAt))
			status.ListenAddr = state.ListenAddr
			status.Driver = state.Driver
		}
	}

	return status
}

// IsRunning returns true if the daemon is running.
func (d *Daemon) IsRunning() bool {
	return d.pidFile.IsRunning()
}

// Start runs the daemon in the foreground until a shutdown signal.
func (d *Daemon) Start(ctx context.Context) error {
	if d.rt == nil {
		return ErrNoStore
	}
	if d.IsRunning() {
		return ErrAlreadyRunning
	}

	if err := d.pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Remove(); err != nil {
			logging.Warn("failed to remove pid file", logging.KeyError, err)
		}
		removeState()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigHandler := NewSignalHandler()
	sigHandler.Setup()
	defer sigHandler.Cleanup()

	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	select {
	case <-d.Ready():
		d.mu.Lock()
		state := &State{StartedAt: d.startedAt, ListenAddr: d.addr, Driver: d.rt.Driver}
		d.mu.Unlock()
		if err := writeState(state); err != nil {
			logging.Warn("failed to write daemon state", logging.KeyError, err)
		}
		logging.Info("daemon started", "pid", os.Getpid(), logging.KeyStore, d.rt.Driver)
	case err := <-errc:
		return err
	}

	go func() {
		sig := sigHandler.Run(ctx, func() {
			logging.Info("reload requested")
			d.Refresh(ctx)
		})
		if sig != nil {
			logging.Info("received signal", "signal", sig.String())
		}
		cancel()
	}()

	err := <-errc
	sigHandler.Stop()
	logging.Info("daemon stopped")
	return err
}

// Ready is closed once Run has started every component.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the address the health and metrics listener is bound to.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Run starts the scheduler, business hours manager, notification worker
// and HTTP listener, and blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.rt == nil {
		return ErrNoStore
	}
	cfg := d.rt.Config

	loc, err := d.rt.Location()
	if err != nil {
		return fmt.Errorf("business hours timezone: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		return err
	}
	d.metrics = metrics
	d.health = NewHealthChecker(d.version)
	d.scheduler = scheduler.NewScheduler(loc)
	d.dispatcher = notify.NewDispatcherWithClient(d.rt.Webhooks, notify.NewHTTPClientWithConfig(cfg.HTTP))

	d.worker = notify.NewWorker(d.rt.Queue, metrics.Sender(d.dispatcher))
	d.worker.StaleWindow = cfg.Queue.StaleAfter
	d.worker.CyclePause = cfg.Queue.CyclePause
	d.worker.BatchSize = cfg.Queue.BatchSize
	d.worker.Workers = cfg.Queue.Workers
	d.worker.Now = d.rt.Now

	if err := registry.Register(NewQueueCollector(d.queueStats, d.worker.Stats)); err != nil {
		return fmt.Errorf("failed to register queue metrics: %w", err)
	}
	d.health.AddCheck("store", d.rt.Ping)

	if cfg.BusinessHours.Enabled {
		d.manager = businesshours.NewManager(d.rt.BusinessHours, d.scheduler, businesshours.Hooks{
			OnOpen:  d.announce(ActionOpen),
			OnClose: d.announce(ActionClose),
		})
		d.Refresh(ctx)
		if err := d.scheduler.ReplaceGroup(GroupMaintenance, []scheduler.Job{{
			Name: "refresh",
			Spec: "@every " + cfg.BusinessHours.RefreshInterval.String(),
			Run:  func() { d.Refresh(ctx) },
		}}); err != nil {
			return err
		}
		d.health.AddCheck("schedule", func(context.Context) error {
			d.mu.Lock()
			defer d.mu.Unlock()
			return d.refreshErr
		})
	}

	if cfg.Daemon.ListenAddr != "" {
		if err := d.listen(cfg.Daemon.ListenAddr); err != nil {
			return err
		}
	}

	d.scheduler.Start()
	d.worker.Start()

	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()
	close(d.ready)

	<-ctx.Done()
	d.shutdown()
	return nil
}

func (d *Daemon) listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", d.health)
	mux.Handle("/metrics", d.metrics.Handler())

	d.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.mu.Lock()
	d.addr = ln.Addr().String()
	d.mu.Unlock()

	go func() {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("health listener failed", logging.KeyError, err)
		}
	}()
	logging.Info("health listener started", "addr", d.addr)
	return nil
}

func (d *Daemon) shutdown() {
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.server.Shutdown(ctx); err != nil {
			logging.Warn("health listener shutdown", logging.KeyError, err)
		}
		cancel()
	}
	d.worker.Stop()
	if d.manager != nil {
		d.manager.Stop()
	}
	d.scheduler.RemoveGroup(GroupMaintenance)
	d.scheduler.Stop()
}

// Refresh re-reads the schedule table and re-registers the triggers.
func (d *Daemon) Refresh(ctx context.Context) {
	if d.manager == nil {
		return
	}
	_, err := d.manager.Refresh(ctx)
	d.metrics.RecordRefresh(err)
	d.mu.Lock()
	d.refreshErr = err
	d.mu.Unlock()
	if err != nil {
		logging.Error("schedule refresh failed", logging.KeyError, err)
	}
}

// Metrics returns the daemon metrics once Run has started.
func (d *Daemon) Metrics() *Metrics {
	return d.metrics
}

// WorkerStats returns the notification worker counters.
func (d *Daemon) WorkerStats() notify.WorkerStats {
	if d.worker == nil {
		return notify.WorkerStats{}
	}
	return d.worker.Stats()
}

func (d *Daemon) queueStats(ctx context.Context) (queue.Stats, error) {
	return d.rt.Queue.Stats(ctx, d.rt.StaleCutoff())
}

// announce returns a hook that counts the trigger and tells the configured
// webhooks which business hours opened or closed.
func (d *Daemon) announce(action string) func(context.Context, businesshours.Trigger, []*model.BusinessHour) {
	return func(ctx context.Context, at businesshours.Trigger, hours []*model.BusinessHour) {
		d.metrics.RecordTrigger(action)

		names := make([]string, 0, len(hours))
		for _, b := range hours {
			names = append(names, b.DisplayName())
		}

		n := model.NewNotification(model.NotifyBusinessOpen, "Business hours open", strings.Join(names, ", "))
		if action == ActionClose {
			n = model.NewNotification(model.NotifyBusinessClose, "Business hours closed", strings.Join(names, ", "))
		}
		n.WithField("Day", at.Day).WithField("Time", at.Time)
		n.WithColor(model.DefaultColorForType(n.Type))

		for _, r := range d.dispatcher.SendNotification(ctx, n) {
			if !r.Success {
				d.metrics.RecordError(r.Error)
				logging.Warn("business hours notification failed",
					logging.KeyWebhook, r.WebhookName,
					logging.KeyError, r.Error)
			}
		}
	}
}

// StartBackground starts the daemon as a detached process.
func (d *Daemon) StartBackground() (int, error) {
	if d.IsRunning() {
		return d.pidFile.GetRunningPID(), ErrAlreadyRunning
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"daemon", "start", "--foreground"}
	if d.ConfigPath != "" {
		args = append(args, "--config", d.ConfigPath)
	}
	if d.debug {
		args = append(args, "--debug")
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdin = nil

	logPath := GetLogPath()
	if logFile, err := OpenLogFile(logPath); err == nil {
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}

	time.Sleep(config.Global.Daemon.StartupWait)

	if !d.pidFile.IsRunning() {
		if errMsg := readLastLogError(logPath); errMsg != "" {
			return 0, fmt.Errorf("daemon failed to start: %s", errMsg)
		}
		return 0, fmt.Errorf("daemon failed to start (check logs: %s)", logPath)
	}

	return cmd.Process.Pid, nil
}

// readLastLogError returns the most recent error line near the end of the
// log at path.
func readLastLogError(path string) string {
	lines, err := TailLog(path, 10)
	if err != nil {
		return ""
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed to") {
			return line
		}
	}
	return ""
}

// Stop stops the running daemon.
func (d *Daemon) Stop() error {
	pid := d.pidFile.GetRunningPID()
	if pid == 0 {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(os.Interrupt); err != nil {
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
	}

	deadline := time.Now().Add(config.Global.Daemon.KillTimeout)
	for IsProcessRunning(pid) && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if IsProcessRunning(pid) {
		logging.Warn("daemon did not stop in time, killing", "pid", pid)
		_ = process.Kill()
	}

	if err := d.pidFile.Remove(); err != nil {
		return err
	}
	removeState()
	return nil
}

// Reload asks a running daemon to re-read its schedule table.
func (d *Daemon) Reload() error {
	pid := d.pidFile.GetRunningPID()
	if pid == 0 {
		return ErrNotRunning
	}
	return signalReload(pid)
}

// State holds persistent daemon state.
type State struct {
	StartedAt  time.Time `json:"started_at"`
	ListenAddr string    `json:"listen_addr,omitempty"`
	Driver     string    `json:"driver,omitempty"`
}

// getStatePath returns the path to the state file.
func getStatePath() string {
	return filepath.Join(xdg.StateHome, AppName, "daemon.json")
}

func writeState(state *State) error {
	path := getStatePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func readState() (*State, error) {
	data, err := os.ReadFile(getStatePath())
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func removeState() {
	if err := os.Remove(getStatePath()); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove daemon state file", logging.KeyError, err, "path", getStatePath())
	}
}

// GetLogPath returns the path to the daemon log file.
func GetLogPath() string {
	return filepath.Join(xdg.StateHome, AppName, "daemon.log")
}

// formatUptime formats a duration as uptime.
func formatUptime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
