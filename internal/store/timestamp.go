package store

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for timestamps stored as text. Rows written by notedav
// use the driver's own encoding; rows written by other tools commonly use
// SQLite's CURRENT_TIMESTAMP form or RFC 3339.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// timestamp scans a created_at/updated_at column whatever its storage class.
type timestamp struct {
	t *time.Time
}

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ts.t = time.Time{}
	case time.Time:
		*ts.t = v.UTC()
	case int64:
		*ts.t = time.Unix(v, 0).UTC()
	case float64:
		*ts.t = time.UnixMilli(int64(v * 1000)).UTC()
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("store: unsupported timestamp type %T", src)
	}
	return nil
}

func (ts timestamp) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("store: unrecognized timestamp %q", s)
}
