package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// dialect captures the differences between backends. Queries are written
// once in SQLite syntax: "?" placeholders, "IS ?" for NULL-safe equality
// and "{{octets}}" for the byte length of notes.content.
type dialect struct {
	name   string
	dollar bool
	octets string
	readTx *sql.TxOptions

	// contentArg converts note content to the bind value the column expects.
	contentArg func([]byte) any
	// lock serializes writers sharing key within tx. Nil when the
	// transaction mode already serializes every writer.
	lock func(ctx context.Context, tx *sql.Tx, key string) error
	// isUnique reports a UNIQUE or PRIMARY KEY violation.
	isUnique func(error) bool
}

func (d *dialect) sql(query string) string {
	query = strings.ReplaceAll(query, "{{octets}}", d.octets)
	if !d.dollar {
		return query
	}
	query = strings.ReplaceAll(query, " IS ?", " IS NOT DISTINCT FROM ?")

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// nullable maps the empty parent reference to SQL NULL.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}
