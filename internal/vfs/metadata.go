package vfs

import (
	"fmt"
	"time"

	"github.com/starford/notedav/internal/checksum"
	"github.com/starford/notedav/internal/models"
)

// Kind tells directories from files.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Metadata is the filesystem view of a node.
type Metadata struct {
	Name     string
	Kind     Kind
	Size     int64
	Created  time.Time
	Modified time.Time
	ETag     string // notes only
}

// IsDir reports whether m describes a directory.
func (m Metadata) IsDir() bool { return m.Kind == KindDirectory }

// Describe derives metadata from node. Nothing is cached: the result reflects
// exactly the row node was read from. The root has no row and reports the
// current time.
func (fs *FS) Describe(node models.Node) Metadata {
	switch n := node.(type) {
	case models.Folder:
		if n.IsRoot() {
			now := fs.now()
			return Metadata{Name: "/", Kind: KindDirectory, Created: now, Modified: now}
		}
		return Metadata{
			Name:     n.Title,
			Kind:     KindDirectory,
			Created:  n.CreatedAt,
			Modified: n.UpdatedAt,
		}
	case models.Note:
		size := n.Size
		if n.Content != nil {
			size = int64(len(n.Content))
		}
		return Metadata{
			Name:     n.FileName(),
			Kind:     KindFile,
			Size:     size,
			Created:  n.CreatedAt,
			Modified: n.UpdatedAt,
			ETag:     checksum.ETag(n.ID, n.UpdatedAt, size),
		}
	default:
		panic(fmt.Sprintf("vfs: unexpected node type %T", node))
	}
}
