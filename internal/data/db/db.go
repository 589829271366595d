// Package db wraps the embedded Badger database that backs all local
// persistence: checklist instance records and their pending-mutation queues.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const gcDiscardRatio = 0.5

// OpenOptions configures the Badger instance.
type OpenOptions struct {
	// InMemory disables disk persistence. Used by tests.
	InMemory bool
	// SyncWrites forces an fsync per write. Queued mutations and optimistic
	// finalizations must survive a crash, so production keeps this on.
	SyncWrites bool
	// GCInterval is how often value-log garbage collection runs.
	// 0 disables it.
	GCInterval time.Duration
	// Logger receives Badger's internal log output at debug level.
	Logger zerolog.Logger
}

// DefaultOpenOptions returns production defaults.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// DB wraps a Badger database handle.
type DB struct {
	badger *badger.DB
	log    zerolog.Logger
}

// Open creates the data directory if needed and opens the database in it.
func Open(dataDir string, opts OpenOptions) (*DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath := filepath.Join(dataDir, "checkup.db")
		if err := os.MkdirAll(dbPath, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		bopts = badger.DefaultOptions(dbPath)
	}

	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: opts.Logger})

	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &DB{badger: bdb, log: opts.Logger}, nil
}

// Badger exposes the underlying handle for stores.
func (d *DB) Badger() *badger.DB {
	return d.badger
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	return d.badger.Close()
}

// RunGC runs value-log garbage collection on the given interval until the
// context is canceled. Call in a goroutine from main.
func (d *DB) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to
			// collect; loop until it does to drain accumulated garbage.
			for {
				if err := d.badger.RunValueLogGC(gcDiscardRatio); err != nil {
					break
				}
			}
		}
	}
}

// badgerLogger adapts zerolog to Badger's Logger interface. Badger is
// chatty, so everything lands at debug except errors.
type badgerLogger struct {
	log zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}
