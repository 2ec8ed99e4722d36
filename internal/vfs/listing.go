package vfs

import (
	"context"
	"iter"

	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/store"
)

// Entry is one child of a listed folder.
type Entry struct {
	Node models.Node
	Metadata
}

// ListChildren yields the direct children of folder: subfolders ordered by
// title then id, followed by notes ordered by title, syntax then id. Every
// range over the sequence reads a fresh snapshot in its own transaction.
// The snapshot is read in full before the first entry is yielded, so the
// consumer may call back into the store while ranging.
func (fs *FS) ListChildren(ctx context.Context, folder models.Folder) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var entries []Entry
		err := fs.store.View(ctx, func(q *store.Queries) error {
			for f, err := range q.ChildFolders(ctx, folder.UserID, folder.ID) {
				if err != nil {
					return err
				}
				entries = append(entries, Entry{Node: f, Metadata: fs.Describe(f)})
			}
			for n, err := range q.ChildNotes(ctx, folder.UserID, folder.ID) {
				if err != nil {
					return err
				}
				entries = append(entries, Entry{Node: n, Metadata: fs.Describe(n)})
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}
