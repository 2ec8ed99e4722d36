package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const sqliteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// openSQLite opens two pools on the same file. Readers use deferred
// transactions and never block on the writer thanks to WAL. The writer pool
// holds a single connection and begins every transaction with
// BEGIN IMMEDIATE, which serializes writes in this process and against any
// other process sharing the file.
func openSQLite(path string, maxOpen int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: sqlite path is required")
	}

	read, err := sql.Open("sqlite3", path+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite reader: %w", err)
	}
	read.SetMaxOpenConns(maxOpen)

	write, err := sql.Open("sqlite3", path+sqliteParams+"&_txlock=immediate")
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("store: open sqlite writer: %w", err)
	}
	write.SetMaxOpenConns(1)

	return &Store{
		read:  read,
		write: write,
		dialect: &dialect{
			name:   DriverSQLite,
			octets: "length(CAST(content AS BLOB))",
			// SQLite does not validate UTF-8; binding a string keeps the
			// column affinity TEXT while preserving bytes exactly.
			contentArg: func(b []byte) any { return string(b) },
			isUnique:   isSQLiteUnique,
		},
	}, nil
}

func isSQLiteUnique(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
