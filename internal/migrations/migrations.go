// Package migrations applies versioned, one-shot data migrations under a
// store-wide lock.
package migrations

import (
	"context"
	"sort"
	"time"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
)

// DefaultLockTimeout is how long a lock is honored before another process
// may take it over.
const DefaultLockTimeout = 10 * time.Minute

// ControlStore persists the applied version and the run lock.
type ControlStore interface {
	Control(ctx context.Context) (*model.MigrationControl, error)
	Lock(ctx context.Context, staleAfter time.Time) (bool, error)
	Unlock(ctx context.Context) error
	SetVersion(ctx context.Context, version int) error
}

// Migration is one versioned step.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context) error
}

// Status describes where the store stands.
type Status struct {
	Current int         `json:"current"`
	Latest  int         `json:"latest"`
	Locked  bool        `json:"locked"`
	Pending []Migration `json:"-"`
}

// Runner applies registered migrations in version order.
type Runner struct {
	control    ControlStore
	migrations []Migration

	// Now is the clock used for lock staleness.
	Now func() time.Time
	// LockTimeout bounds how long a crashed run blocks others.
	LockTimeout time.Duration
}

// NewRunner creates a runner over the given migrations.
func NewRunner(control ControlStore, migrations ...Migration) *Runner {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Runner{
		control:     control,
		migrations:  sorted,
		Now:         time.Now,
		LockTimeout: DefaultLockTimeout,
	}
}

// Latest returns the highest registered version.
func (r *Runner) Latest() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

// Status reports the current version and the pending migrations.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	c, err := r.control.Control(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Current: c.Version,
		Latest:  r.Latest(),
		Locked:  c.Locked,
		Pending: r.pending(c.Version, r.Latest()),
	}, nil
}

func (r *Runner) pending(current, target int) []Migration {
	var out []Migration
	for _, m := range r.migrations {
		if m.Version > current && m.Version <= target {
			out = append(out, m)
		}
	}
	return out
}

// Up applies every pending migration up to target (0 means latest) and
// returns the versions applied. It returns ErrMigrationLocked when another
// process holds a live lock. The version is recorded after each step, so a
// failed run resumes at the failing migration.
func (r *Runner) Up(ctx context.Context, target int) ([]int, error) {
	if target <= 0 {
		target = r.Latest()
	}

	ok, err := r.control.Lock(ctx, r.Now().Add(-r.LockTimeout))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewRecoverableError("migrations are running in another process", errors.ErrMigrationLocked, 1)
	}
	defer func() {
		if err := r.control.Unlock(context.WithoutCancel(ctx)); err != nil {
			logging.Warn("failed to release migration lock", logging.KeyError, err)
		}
	}()

	c, err := r.control.Control(ctx)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range r.pending(c.Version, target) {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		start := time.Now()
		if err := m.Up(ctx); err != nil {
			return applied, errors.WithStack(errors.Wrapf(err, "migration %d (%s)", m.Version, m.Name))
		}
		if err := r.control.SetVersion(ctx, m.Version); err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
		logging.Info("migration applied",
			logging.KeyMigration, m.Version,
			"name", m.Name,
			logging.KeyDuration, time.Since(start))
	}
	return applied, nil
}
