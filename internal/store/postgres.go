package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// openPostgres opens a single pool. Reads run as REPEATABLE READ snapshots;
// writes take a transaction-scoped advisory lock on their key, so writers of
// the same path queue while writers of different paths run in parallel.
func openPostgres(dsn string, maxOpen int) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{
		read:  db,
		write: db,
		dialect: &dialect{
			name:       DriverPostgres,
			dollar:     true,
			octets:     "octet_length(content)",
			readTx:     &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
			contentArg: func(b []byte) any { return b },
			lock:       postgresAdvisoryLock,
			isUnique:   isPostgresUnique,
		},
	}, nil
}

func postgresAdvisoryLock(ctx context.Context, tx *sql.Tx, key string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

func isPostgresUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
