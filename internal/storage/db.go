// Package storage provides the embedded database layer for livedesk.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
)

const (
	// AppName is the application name used for data directories.
	AppName = "livedesk"
)

// DB wraps a Badger database connection.
type DB struct {
	db   *badger.DB
	path string
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
}

// DefaultPath returns the default database path following XDG spec.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, AppName, "db")
}

// Open opens or creates a database at the given path.
func Open(opts Options) (*DB, error) {
	var badgerOpts badger.Options
	path := ""

	if opts.InMemory || opts.Path == "" {
		// In-memory mode for testing
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := EnsureDirectory(opts.Path); err != nil {
			return nil, err
		}
		if err := CheckDiskSpace(opts.Path); err != nil {
			return nil, err
		}
		if warning := CheckDiskSpaceWarning(opts.Path); warning != "" {
			logging.Warn(warning)
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
		path = opts.Path
	}

	// Reduce logging noise
	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		if IsDatabaseCorrupted(err) {
			return nil, errors.NewSystemErrorWithOp("open", "database corrupted",
				fmt.Errorf("%w: %v", errors.ErrDatabaseCorrupted, err))
		}
		return nil, err
	}

	return &DB{db: db, path: path}, nil
}

// OpenWithIntegrityCheck opens the database and refuses to hand it out if a
// sample scan finds corrupted values.
func OpenWithIntegrityCheck(opts Options) (*DB, error) {
	db, err := Open(opts)
	if err != nil {
		return nil, err
	}
	if err := db.CheckIntegrity(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// CheckIntegrity returns ErrDatabaseCorrupted when CheckDatabaseIntegrity
// reports problems.
func (d *DB) CheckIntegrity() error {
	status := CheckDatabaseIntegrity(d)
	if status.Healthy {
		return nil
	}
	return errors.NewSystemErrorWithOp("integrity check",
		fmt.Sprintf("%d corrupted entries", status.ErrorCount),
		errors.ErrDatabaseCorrupted)
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the on-disk directory, or "" for an in-memory database.
func (d *DB) Path() string {
	return d.path
}

// Badger returns the underlying Badger database for advanced operations.
func (d *DB) Badger() *badger.DB {
	return d.db
}
