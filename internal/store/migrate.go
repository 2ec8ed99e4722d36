package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFS embed.FS

// Migrate brings the schema of the database described by cfg up to date
// using the embedded migrations. It opens and closes its own connection.
func Migrate(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	driverName := cfg.Driver
	if driverName == "" {
		driverName = DriverSQLite
	}

	var (
		db  *sql.DB
		err error
	)
	switch driverName {
	case DriverSQLite:
		if cfg.Path == "" {
			return fmt.Errorf("store: sqlite path is required")
		}
		db, err = sql.Open("sqlite3", cfg.Path+sqliteParams)
	case DriverPostgres:
		db, err = sql.Open("pgx", cfg.DSN)
	default:
		return fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return fmt.Errorf("store: open for migration: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping for migration: %w", err)
	}

	var drv database.Driver
	switch driverName {
	case DriverSQLite:
		drv, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DriverPostgres:
		drv, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	}
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations/"+driverName)
	if err != nil {
		drv.Close()
		return fmt.Errorf("store: migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, drv)
	if err != nil {
		drv.Close()
		return fmt.Errorf("store: init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	logger.Info("schema up to date",
		slog.String("driver", driverName),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty))
	return nil
}
