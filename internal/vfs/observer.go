package vfs

import "strings"

// ChangeKind classifies a committed note mutation.
type ChangeKind uint8

const (
	ChangeWritten ChangeKind = iota
	ChangeDeleted
	ChangeRenamed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	default:
		return "written"
	}
}

// Change describes a note mutation after its transaction committed. From is
// set for renames only.
type Change struct {
	Kind   ChangeKind
	Tenant string
	Path   string
	From   string
	NoteID string
}

// Observer is told about every committed change. NoteChanged runs on the
// writer's goroutine and must not block for long.
type Observer interface {
	NoteChanged(Change)
}

// WithObserver registers o for change notifications.
func WithObserver(o Observer) Option {
	return func(fs *FS) { fs.observers = append(fs.observers, o) }
}

func (fs *FS) notify(c Change) {
	for _, o := range fs.observers {
		o.NoteChanged(c)
	}
}

func cleanPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}
