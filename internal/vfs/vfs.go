// Package vfs presents the folders/notes hierarchy of one tenant as a
// filesystem tree. Paths are slash separated; "/" is the tenant root, folder
// titles are directory names and notes appear as "{title}.{syntax}" files.
//
// FS holds no mutable state of its own. Every operation runs inside a store
// transaction, so it is safe for concurrent use.
package vfs

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/store"
)

// Filesystem is the capability a protocol binding needs from the adapter.
type Filesystem interface {
	Resolve(ctx context.Context, tenant, path string) (models.Node, error)
	ResolveFolder(ctx context.Context, tenant, path string) (models.Folder, error)
	Describe(node models.Node) Metadata
	ListChildren(ctx context.Context, folder models.Folder) iter.Seq2[Entry, error]
	Read(ctx context.Context, note models.Note) ([]byte, error)
	ReadNote(ctx context.Context, note models.Note) (models.Note, error)
	Write(ctx context.Context, tenant, path string, content []byte) (models.Note, error)
	Remove(ctx context.Context, tenant, path string) error
	Rename(ctx context.Context, tenant, from, to string) (models.Note, error)
}

// FS implements Filesystem on top of a store.
type FS struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	observers []Observer
}

var _ Filesystem = (*FS)(nil)

// Option configures an FS.
type Option func(*FS)

// WithLogger sets the logger used for write events.
func WithLogger(l *slog.Logger) Option {
	return func(fs *FS) { fs.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(fs *FS) { fs.now = now }
}

// WithIDGenerator replaces the identifier source for new notes.
func WithIDGenerator(newID func() string) Option {
	return func(fs *FS) { fs.newID = newID }
}

// New returns an FS backed by s.
func New(s *store.Store, opts ...Option) *FS {
	fs := &FS{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}
