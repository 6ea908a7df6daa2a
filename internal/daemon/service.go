package daemon

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/adrg/xdg"

	"github.com/manav03panchal/livedesk/internal/logging"
)

// Service identifiers.
const (
	LaunchdLabel = "com.livedesk.daemon"
	SystemdUnit  = "livedesk.service"
)

// ServiceManager handles system service installation.
type ServiceManager struct {
	executablePath string
	configPath     string
}

// NewServiceManager creates a new service manager. configPath is passed to
// the installed daemon with --config when non-empty.
func NewServiceManager(configPath string) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	return &ServiceManager{
		executablePath: execPath,
		configPath:     configPath,
	}, nil
}

// Install installs the daemon as a system service.
func (m *ServiceManager) Install() error {
	switch runtime.GOOS {
	case "darwin":
		return m.installLaunchd()
	case "linux":
		return m.installSystemd()
	default:
		return fmt.Errorf("service installation is not supported on %s", runtime.GOOS)
	}
}

// Uninstall removes the daemon from system services.
func (m *ServiceManager) Uninstall() error {
	switch runtime.GOOS {
	case "darwin":
		return m.uninstallLaunchd()
	case "linux":
		return m.uninstallSystemd()
	default:
		return fmt.Errorf("service uninstallation is not supported on %s", runtime.GOOS)
	}
}

// IsInstalled checks if the service is installed.
func (m *ServiceManager) IsInstalled() bool {
	switch runtime.GOOS {
	case "darwin":
		return fileExists(m.getLaunchdPath())
	case "linux":
		return fileExists(m.getSystemdPath())
	default:
		return false
	}
}

// Path returns where the service definition is installed.
func (m *ServiceManager) Path() string {
	if runtime.GOOS == "darwin" {
		return m.getLaunchdPath()
	}
	return m.getSystemdPath()
}

type serviceData struct {
	Label          string
	ExecutablePath string
	ConfigPath     string
	LogPath        string
	WorkDir        string
	HomeDirectory  string
	DataHome       string
	StateHome      string
	ConfigHome     string
}

func (m *ServiceManager) data() serviceData {
	return serviceData{
		Label:          LaunchdLabel,
		ExecutablePath: m.executablePath,
		ConfigPath:     m.configPath,
		LogPath:        GetLogPath(),
		WorkDir:        filepath.Dir(m.executablePath),
		HomeDirectory:  os.Getenv("HOME"),
		DataHome:       xdg.DataHome,
		StateHome:      xdg.StateHome,
		ConfigHome:     xdg.ConfigHome,
	}
}

// macOS launchd support

var launchdPlist = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>start</string>
        <string>--foreground</string>{{if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>{{end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
    <key>WorkingDirectory</key>
    <string>{{.WorkDir}}</string>
</dict>
</plist>
`))

// RenderLaunchd writes the launchd plist.
func (m *ServiceManager) RenderLaunchd(w io.Writer) error {
	return launchdPlist.Execute(w, m.data())
}

func (m *ServiceManager) getLaunchdPath() string {
	return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", LaunchdLabel+".plist")
}

func (m *ServiceManager) installLaunchd() error {
	plistPath := m.getLaunchdPath()
	if err := writeServiceFile(plistPath, m.RenderLaunchd); err != nil {
		return err
	}

	if err := run("launchctl", "load", plistPath); err != nil {
		return fmt.Errorf("failed to load service: %w", err)
	}

	logging.DebugLog("installed launchd service", "path", plistPath)
	return nil
}

func (m *ServiceManager) uninstallLaunchd() error {
	plistPath := m.getLaunchdPath()

	// not loaded is fine
	_ = run("launchctl", "unload", plistPath)

	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove plist file: %w", err)
	}

	logging.DebugLog("uninstalled launchd service", "path", plistPath)
	return nil
}

// Linux systemd support

var systemdUnit = template.Must(template.New("unit").Parse(`[Unit]
Description=livedesk business hours and notification daemon
After=network-online.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}} daemon start --foreground{{if .ConfigPath}} --config {{.ConfigPath}}{{end}}
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}
Environment="HOME={{.HomeDirectory}}"
Environment="XDG_DATA_HOME={{.DataHome}}"
Environment="XDG_STATE_HOME={{.StateHome}}"
Environment="XDG_CONFIG_HOME={{.ConfigHome}}"

[Install]
WantedBy=default.target
`))

// RenderSystemd writes the systemd user unit.
func (m *ServiceManager) RenderSystemd(w io.Writer) error {
	return systemdUnit.Execute(w, m.data())
}

func (m *ServiceManager) getSystemdPath() string {
	return filepath.Join(xdg.ConfigHome, "systemd", "user", SystemdUnit)
}

func (m *ServiceManager) installSystemd() error {
	unitPath := m.getSystemdPath()
	if err := writeServiceFile(unitPath, m.RenderSystemd); err != nil {
		return err
	}

	for _, args := range [][]string{
		{"--user", "daemon-reload"},
		{"--user", "enable", SystemdUnit},
		{"--user", "start", SystemdUnit},
	} {
		if err := run("systemctl", args...); err != nil {
			return fmt.Errorf("systemctl %s: %w", args[1], err)
		}
	}

	logging.DebugLog("installed systemd user service", "path", unitPath)
	return nil
}

func (m *ServiceManager) uninstallSystemd() error {
	unitPath := m.getSystemdPath()

	// not running or not enabled is fine
	_ = run("systemctl", "--user", "stop", SystemdUnit)
	_ = run("systemctl", "--user", "disable", SystemdUnit)

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}

	_ = run("systemctl", "--user", "daemon-reload")

	logging.DebugLog("uninstalled systemd user service", "path", unitPath)
	return nil
}

func writeServiceFile(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create service file: %w", err)
	}
	defer file.Close()

	if err := render(file); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}
	return nil
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
