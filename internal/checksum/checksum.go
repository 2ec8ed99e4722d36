// Package checksum derives content digests and entity tags.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns a quoted strong entity tag for one version of a note. A
// rewrite always moves the modification time forward, and a note replaced
// under the same name gets a new id, so the tag changes with every content
// change without reading the content.
func ETag(id string, modified time.Time, size int64) string {
	b := make([]byte, 0, len(id)+40)
	b = append(b, id...)
	b = append(b, 0)
	b = strconv.AppendInt(b, modified.UTC().UnixNano(), 10)
	b = append(b, 0)
	b = strconv.AppendInt(b, size, 10)
	return `"` + Sum(b)[:32] + `"`
}
