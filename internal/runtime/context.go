// Package runtime wires the configured store, its directories and the
// output formatter for a single command invocation.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/config"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/migrations"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/notify"
	"github.com/manav03panchal/livedesk/internal/output"
	"github.com/manav03panchal/livedesk/internal/queue"
	"github.com/manav03panchal/livedesk/internal/storage"
	"github.com/manav03panchal/livedesk/internal/storage/mongostore"
	"github.com/manav03panchal/livedesk/internal/teams"
)

// MemoryPath selects an in-memory badger store when given as the store path.
const MemoryPath = ":memory:"

// JobStore is the notification queue plus operator lookups.
type JobStore interface {
	queue.Store
	Get(ctx context.Context, id string) (*model.NotificationJob, error)
	List(ctx context.Context) ([]*model.NotificationJob, error)
}

// TrashStore keeps tombstones of removed records.
type TrashStore interface {
	Put(ctx context.Context, collection, id string, v any) error
	Get(ctx context.Context, collection, id string) (*model.TrashRecord, error)
	List(ctx context.Context, collection string) ([]*model.TrashRecord, error)
	Purge(ctx context.Context, collection, id string) error
}

// Context holds the application runtime context.
type Context struct {
	Config    *config.RuntimeConfig
	Driver    string
	Formatter *output.Formatter

	// Directories
	BusinessHours businesshours.Directory
	Queue         JobStore
	Teams         teams.Store
	Trash         TrashStore
	Webhooks      notify.WebhookStore
	Migrations    migrations.ControlStore

	// DB is set for the badger driver only.
	DB *storage.DB
	// Mongo is set for the mongo driver only.
	Mongo *mongostore.Store

	// Debug mode
	Debug bool

	// Now is the clock used for stale cutoffs and migrations.
	Now func() time.Time
}

// Options configures the runtime context.
type Options struct {
	// Config defaults to config.Global.
	Config *config.RuntimeConfig
	// DBPath overrides Config.Store.Path for the badger driver.
	DBPath    string
	InMemory  bool
	Format    output.Format
	ColorMode output.ColorMode
	Debug     bool
}

// DefaultOptions returns default runtime options.
func DefaultOptions() Options {
	return Options{
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
	}
}

// New opens the configured store and creates a runtime context.
func New(opts Options) (*Context, error) {
	return NewWithContext(context.Background(), opts)
}

// NewWithContext is New with a context bounding the store connection.
func NewWithContext(ctx context.Context, opts Options) (*Context, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Global
	}

	formatter := output.NewFormatter()
	if opts.Format != "" {
		formatter.Format = opts.Format
	}
	if opts.ColorMode != "" {
		formatter.ColorMode = opts.ColorMode
	}

	rc := &Context{
		Config:    cfg,
		Formatter: formatter,
		Debug:     opts.Debug,
		Now:       time.Now,
	}

	driver := cfg.Store.Driver
	if opts.InMemory {
		driver = config.DriverBadger
	}
	rc.Driver = driver

	switch driver {
	case config.DriverBadger, "":
		rc.Driver = config.DriverBadger
		if err := rc.openBadger(opts, cfg); err != nil {
			return nil, err
		}
	case config.DriverMongo:
		if err := rc.openMongo(ctx, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w %q", lderrors.ErrUnknownStoreDriver, driver)
	}

	logging.DebugLog("store opened", logging.KeyStore, rc.Driver)
	return rc, nil
}

func (c *Context) openBadger(opts Options, cfg *config.RuntimeConfig) error {
	path := opts.DBPath
	if path == "" {
		path = cfg.Store.Path
	}
	inMemory := opts.InMemory || path == MemoryPath
	if path == "" && !inMemory {
		path = storage.DefaultPath()
	}
	if inMemory {
		path = ""
	}

	db, err := storage.Open(storage.Options{Path: path, InMemory: inMemory})
	if err != nil {
		return lderrors.WithStack(err)
	}

	c.DB = db
	c.BusinessHours = storage.NewBusinessHourRepo(db)
	c.Queue = storage.NewNotificationQueueRepo(db)
	c.Teams = storage.NewTeamMemberRepo(db)
	c.Trash = storage.NewTrashRepo(db)
	c.Webhooks = storage.NewWebhookRepo(db)
	c.Migrations = storage.NewMigrationRepo(db)
	return nil
}

func (c *Context) openMongo(ctx context.Context, cfg *config.RuntimeConfig) error {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Store.ConnectTimeout)
	defer cancel()

	store, err := mongostore.Connect(connectCtx, mongostore.Options{
		URI:      cfg.Store.URI,
		Database: cfg.Store.Database,
		Timeout:  cfg.Store.ConnectTimeout,
	})
	if err != nil {
		return lderrors.WithStack(err)
	}
	if err := store.EnsureIndexes(connectCtx); err != nil {
		_ = store.Close(context.Background())
		return lderrors.WithStack(lderrors.NewSystemErrorWithOp("ensure indexes", "cannot prepare MongoDB collections", err))
	}

	c.Mongo = store
	c.BusinessHours = store.BusinessHours()
	c.Queue = store.Queue()
	c.Teams = store.TeamMembers()
	c.Trash = store.Trash()
	c.Webhooks = store.Webhooks()
	c.Migrations = store.Migrations()
	return nil
}

// Close closes the runtime context.
func (c *Context) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.Mongo.Close(ctx)
	}
	return nil
}

// Ping verifies the store is reachable.
func (c *Context) Ping(ctx context.Context) error {
	if c.Mongo != nil {
		return c.Mongo.Ping(ctx)
	}
	if c.DB != nil {
		return c.DB.CheckIntegrity()
	}
	return lderrors.ErrStoreUnavailable
}

// StaleCutoff returns the claim cutoff for now.
func (c *Context) StaleCutoff() time.Time {
	return queue.StaleCutoff(c.Now(), c.Config.Queue.StaleAfter)
}

// Location resolves the configured server location.
func (c *Context) Location() (*time.Location, error) {
	return c.Config.Location()
}

// MigrationRunner returns a runner with every built-in migration.
func (c *Context) MigrationRunner() (*migrations.Runner, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return migrations.NewRunner(c.Migrations, migrations.Builtin(c.BusinessHours, loc, c.Now)...), nil
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Formatter.Format == output.FormatJSON
}

// IsCLI returns true if output format is CLI.
func (c *Context) IsCLI() bool {
	return c.Formatter.Format == output.FormatCLI
}

// Debugf prints debug output if debug mode is enabled.
func (c *Context) Debugf(format string, args ...interface{}) {
	if c.Debug {
		c.Formatter.Printf("[DEBUG] "+format+"\n", args...)
	}
}
