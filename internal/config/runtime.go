// Package config provides centralized configuration for livedesk.
//
// Values come from built-in defaults, an optional YAML file and LIVEDESK_
// environment variables, in increasing order of precedence. Nested keys map
// to variables by replacing dots with underscores, so queue.stale_after is
// LIVEDESK_QUEUE_STALE_AFTER.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "LIVEDESK"

// Store drivers.
const (
	DriverBadger = "badger"
	DriverMongo  = "mongo"
)

// RuntimeConfig holds every tunable runtime value.
type RuntimeConfig struct {
	Store         StoreConfig         `mapstructure:"store"`
	Queue         QueueConfig         `mapstructure:"queue"`
	BusinessHours BusinessHoursConfig `mapstructure:"business_hours"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Daemon        DaemonConfig        `mapstructure:"daemon"`
	Log           LogConfig           `mapstructure:"log"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	// Driver is "badger" (embedded, default) or "mongo".
	Driver string `mapstructure:"driver"`
	// Path is the badger directory. Empty means the XDG data dir.
	Path string `mapstructure:"path"`
	// URI is the MongoDB connection string.
	URI string `mapstructure:"uri"`
	// Database is the MongoDB database name.
	Database string `mapstructure:"database"`
	// ConnectTimeout bounds dialing and the initial ping.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// QueueConfig holds notification worker settings.
type QueueConfig struct {
	// StaleAfter is how long a claim is honored.
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// CyclePause is the idle wait between claim passes.
	CyclePause time.Duration `mapstructure:"cycle_pause"`
	// BatchSize is how many jobs one pass handles before pausing.
	BatchSize int `mapstructure:"batch_size"`
	// Workers is the number of concurrent claim loops.
	Workers int `mapstructure:"workers"`
}

// BusinessHoursConfig holds the business-hours manager settings.
type BusinessHoursConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Timezone is the server location cron triggers run in. Empty means
	// the local zone.
	Timezone string `mapstructure:"timezone"`
	// RefreshInterval is how often the schedule table is re-read.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// HTTPConfig holds webhook client configuration.
type HTTPConfig struct {
	Timeout     time.Duration   `mapstructure:"timeout"`
	MaxRetries  int             `mapstructure:"max_retries"`
	RetryDelays []time.Duration `mapstructure:"retry_delays"`

	// BreakerFailures is the number of consecutive failures that opens a
	// host's circuit.
	BreakerFailures uint32 `mapstructure:"breaker_failures"`
	// BreakerTimeout is how long an open circuit stays open.
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// DaemonConfig holds daemon-related configuration.
type DaemonConfig struct {
	// StartupWait is the time to wait for the daemon to start before
	// checking status.
	StartupWait time.Duration `mapstructure:"startup_wait"`
	// KillTimeout is the timeout for graceful shutdown before force kill.
	KillTimeout time.Duration `mapstructure:"kill_timeout"`
	// ListenAddr serves /healthz and /metrics. Empty disables it.
	ListenAddr string `mapstructure:"listen_addr"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultRuntimeConfig returns the default runtime configuration.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Store: StoreConfig{
			Driver:         DriverBadger,
			Database:       "livedesk",
			ConnectTimeout: 10 * time.Second,
		},
		Queue: QueueConfig{
			StaleAfter: 5 * time.Minute,
			CyclePause: 5 * time.Second,
			BatchSize:  5,
			Workers:    1,
		},
		BusinessHours: BusinessHoursConfig{
			Enabled:         true,
			RefreshInterval: 5 * time.Minute,
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelays: []time.Duration{
				0,
				5 * time.Second,
				30 * time.Second,
			},
			BreakerFailures: 3,
			BreakerTimeout:  time.Minute,
		},
		Daemon: DaemonConfig{
			StartupWait: 500 * time.Millisecond,
			KillTimeout: 5 * time.Second,
			ListenAddr:  "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Global holds the active configuration. It starts at the defaults plus
// environment overrides; Load replaces it.
var Global = initGlobal()

func initGlobal() *RuntimeConfig {
	cfg, err := load(newViper(), "")
	if err != nil {
		return DefaultRuntimeConfig()
	}
	return cfg
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "livedesk", "config.yaml")
}

// Load reads path (or DefaultPath when it exists), applies environment
// overrides, validates the result and installs it as Global.
func Load(path string) (*RuntimeConfig, error) {
	cfg, err := load(newViper(), path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	Global = cfg
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultRuntimeConfig())
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, d *RuntimeConfig) {
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.uri", d.Store.URI)
	v.SetDefault("store.database", d.Store.Database)
	v.SetDefault("store.connect_timeout", d.Store.ConnectTimeout)

	v.SetDefault("queue.stale_after", d.Queue.StaleAfter)
	v.SetDefault("queue.cycle_pause", d.Queue.CyclePause)
	v.SetDefault("queue.batch_size", d.Queue.BatchSize)
	v.SetDefault("queue.workers", d.Queue.Workers)

	v.SetDefault("business_hours.enabled", d.BusinessHours.Enabled)
	v.SetDefault("business_hours.timezone", d.BusinessHours.Timezone)
	v.SetDefault("business_hours.refresh_interval", d.BusinessHours.RefreshInterval)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.retry_delays", d.HTTP.RetryDelays)
	v.SetDefault("http.breaker_failures", d.HTTP.BreakerFailures)
	v.SetDefault("http.breaker_timeout", d.HTTP.BreakerTimeout)

	v.SetDefault("daemon.startup_wait", d.Daemon.StartupWait)
	v.SetDefault("daemon.kill_timeout", d.Daemon.KillTimeout)
	v.SetDefault("daemon.listen_addr", d.Daemon.ListenAddr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func load(v *viper.Viper, path string) (*RuntimeConfig, error) {
	v.SetConfigType("yaml")
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), !explicit && isNotExist(err):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &RuntimeConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Settings returns the merged settings for path keyed by their dotted
// names, for display.
func Settings(path string) (map[string]any, error) {
	v := newViper()
	if _, err := load(v, path); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, key := range v.AllKeys() {
		out[key] = v.Get(key)
	}
	return out, nil
}

// WriteDefault writes the default configuration to path as YAML. It
// refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	defaults := viper.New()
	setDefaults(defaults, DefaultRuntimeConfig())

	// Durations are written in their string form so the file stays
	// editable.
	v := viper.New()
	for _, key := range defaults.AllKeys() {
		switch val := defaults.Get(key).(type) {
		case time.Duration:
			v.Set(key, val.String())
		case []time.Duration:
			s := make([]string, len(val))
			for i, d := range val {
				s[i] = d.String()
			}
			v.Set(key, s)
		default:
			v.Set(key, val)
		}
	}
	v.SetConfigType("yaml")
	return v.SafeWriteConfigAs(path)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Location resolves BusinessHours.Timezone.
func (c *RuntimeConfig) Location() (*time.Location, error) {
	if c.BusinessHours.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.BusinessHours.Timezone)
}

// Validate rejects values the runtime cannot work with.
func (c *RuntimeConfig) Validate() error {
	switch c.Store.Driver {
	case DriverBadger:
	case DriverMongo:
		if c.Store.URI == "" {
			return fmt.Errorf("store.uri is required for the mongo driver")
		}
		if c.Store.Database == "" {
			return fmt.Errorf("store.database is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q (use %s or %s)", c.Store.Driver, DriverBadger, DriverMongo)
	}

	for name, d := range map[string]time.Duration{
		"queue.stale_after":               c.Queue.StaleAfter,
		"queue.cycle_pause":               c.Queue.CyclePause,
		"business_hours.refresh_interval": c.BusinessHours.RefreshInterval,
		"http.timeout":                    c.HTTP.Timeout,
		"store.connect_timeout":           c.Store.ConnectTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Queue.BatchSize < 1 {
		return fmt.Errorf("queue.batch_size must be at least 1")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("business_hours.timezone: %w", err)
	}
	return nil
}

// Reset resets the configuration to defaults.
// This is primarily useful for testing.
func (c *RuntimeConfig) Reset() {
	defaults := DefaultRuntimeConfig()
	*c = *defaults
}
