// Package store provides the relational folders/notes store behind the
// virtual filesystem. SQLite (mattn/go-sqlite3) is the default backend;
// Postgres is available through pgx.
//
// All access goes through transactions: View for read-only work and Update
// for writes. Update serializes conflicting writers, so a lookup followed by
// an insert or update inside one Update call is atomic with respect to other
// writers of the same key.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/notedav/internal/apperr"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultMaxOpenConns = 8

// Config selects and tunes a backend.
type Config struct {
	Driver       string
	Path         string // SQLite database file
	DSN          string // Postgres connection string
	MaxOpenConns int
	Logger       *slog.Logger
}

// Store owns the connection pools. It is safe for concurrent use.
type Store struct {
	read    *sql.DB
	write   *sql.DB
	dialect *dialect
	logger  *slog.Logger
}

// Open opens the backend named by cfg.Driver and verifies connectivity.
// The schema is not created here; see Migrate.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}

	var (
		s   *Store
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		s, err = openSQLite(cfg.Path, maxOpen)
	case DriverPostgres:
		s, err = openPostgres(cfg.DSN, maxOpen)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	s.logger = logger

	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, err
	}
	logger.Debug("store opened", slog.String("driver", s.dialect.name))
	return s, nil
}

// Ping checks that both pools can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.read.PingContext(ctx); err != nil {
		return apperr.Store("ping", err)
	}
	if s.write != s.read {
		if err := s.write.PingContext(ctx); err != nil {
			return apperr.Store("ping writer", err)
		}
	}
	return nil
}

// Close closes the underlying pools.
func (s *Store) Close() error {
	err := s.read.Close()
	if s.write != s.read {
		if werr := s.write.Close(); err == nil {
			err = werr
		}
	}
	return err
}

// Driver returns the backend name.
func (s *Store) Driver() string { return s.dialect.name }

// View runs fn inside a read-only transaction. Every query fn issues sees
// one consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.read.BeginTx(ctx, s.dialect.readTx)
	if err != nil {
		return apperr.Store("begin read tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(s.queries(tx)); err != nil {
		return err
	}
	return apperr.Store("commit read tx", tx.Commit())
}

// Update runs fn inside a write transaction. Writers that pass the same key
// are serialized; fn either commits in full or has no effect. A cancelled
// ctx rolls the transaction back.
func (s *Store) Update(ctx context.Context, key string, fn func(*Queries) error) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin write tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if s.dialect.lock != nil {
		if err := s.dialect.lock(ctx, tx, key); err != nil {
			return apperr.Store("acquire write lock", err)
		}
	}
	if err := fn(s.queries(tx)); err != nil {
		return err
	}
	return apperr.Store("commit write tx", tx.Commit())
}

func (s *Store) queries(tx *sql.Tx) *Queries {
	return &Queries{tx: tx, d: s.dialect, logger: s.logger}
}
