package vfs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/notedav/internal/apperr"
	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/store"
)

// timestamp returns the clock reading at the precision every backend stores
// (Postgres timestamptz keeps microseconds), so a returned note carries
// exactly the times a later read sees.
func (fs *FS) timestamp() time.Time {
	return fs.now().UTC().Truncate(time.Microsecond)
}

func nextTimestamp(prev time.Time) time.Time {
	return prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
}

// ReadNote re-reads note by id, content included.
func (fs *FS) ReadNote(ctx context.Context, note models.Note) (models.Note, error) {
	var full models.Note
	err := fs.store.View(ctx, func(q *store.Queries) error {
		var err error
		full, err = q.GetNote(ctx, note.UserID, note.ID)
		return err
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("read %s: %w", note.FileName(), err)
	}
	return full, nil
}

// Read returns the content of note exactly as stored.
func (fs *FS) Read(ctx context.Context, note models.Note) ([]byte, error) {
	full, err := fs.ReadNote(ctx, note)
	if err != nil {
		return nil, err
	}
	return full.Content, nil
}

// Write stores content at path, replacing the content of the note already
// there or creating a new one. The parent folder must exist. Lookup and
// mutation run in one write transaction, serialized against other writes to
// the same path.
func (fs *FS) Write(ctx context.Context, tenant, path string, content []byte) (models.Note, error) {
	segs := Split(path)
	if len(segs) == 0 {
		return models.Note{}, fmt.Errorf("write /: %w", apperr.ErrIsADirectory)
	}
	parentSegs, name := segs[:len(segs)-1], segs[len(segs)-1]
	title, syntax := SplitName(name)
	if content == nil {
		content = []byte{}
	}

	var (
		note    models.Note
		created bool
	)
	err := fs.store.Update(ctx, lockKey(tenant, parentSegs, title, syntax), func(q *store.Queries) error {
		parent, err := resolveParent(ctx, q, tenant, parentSegs)
		if err != nil {
			return err
		}
		if _, ok, err := q.FindFolder(ctx, tenant, parent.ID, name); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%q: %w", name, apperr.ErrIsADirectory)
		}

		existing, ok, err := q.FindNote(ctx, tenant, parent.ID, title, syntax)
		if err != nil {
			return err
		}
		now := fs.timestamp()

		if ok {
			// updated_at strictly advances across writes, even on a coarse clock.
			if !now.After(existing.UpdatedAt) {
				now = nextTimestamp(existing.UpdatedAt)
			}
			if err := q.UpdateNoteContent(ctx, tenant, existing.ID, content, now); err != nil {
				return err
			}
			note = existing
			note.UpdatedAt = now
		} else {
			note = models.Note{
				ID:        fs.newID(),
				Title:     title,
				Syntax:    syntax,
				ParentID:  parent.ID,
				UserID:    tenant,
				Content:   content,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := q.InsertNote(ctx, note); err != nil {
				return err
			}
			created = true
		}
		note.Content = content
		note.Size = int64(len(content))
		return nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("write %s: %w", path, err)
	}

	fs.logger.Debug("note written",
		slog.String("tenant", tenant),
		slog.String("path", path),
		slog.String("id", note.ID),
		slog.Bool("created", created),
		slog.Int64("size", note.Size))
	fs.notify(Change{Kind: ChangeWritten, Tenant: tenant, Path: cleanPath(segs), NoteID: note.ID})
	return note, nil
}

// Remove deletes the note at path. Folders and the root cannot be removed
// through the filesystem and yield apperr.ErrForbidden.
func (fs *FS) Remove(ctx context.Context, tenant, path string) error {
	segs := Split(path)
	if len(segs) == 0 {
		return fmt.Errorf("remove /: %w", apperr.ErrForbidden)
	}
	title, syntax := SplitName(segs[len(segs)-1])

	var removed models.Note
	err := fs.store.Update(ctx, lockKey(tenant, segs[:len(segs)-1], title, syntax), func(q *store.Queries) error {
		node, err := resolve(ctx, q, tenant, segs, false)
		if err != nil {
			return err
		}
		switch n := node.(type) {
		case models.Folder:
			return fmt.Errorf("folder %q: %w", n.Title, apperr.ErrForbidden)
		case models.Note:
			removed = n
			return q.DeleteNote(ctx, tenant, n.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	fs.logger.Debug("note removed",
		slog.String("tenant", tenant),
		slog.String("path", path),
		slog.String("id", removed.ID))
	fs.notify(Change{Kind: ChangeDeleted, Tenant: tenant, Path: cleanPath(segs), NoteID: removed.ID})
	return nil
}

// Rename gives the note at from the name of the last segment of to. Both
// paths must share a parent folder. A note already at to is replaced.
func (fs *FS) Rename(ctx context.Context, tenant, from, to string) (models.Note, error) {
	src, dst := Split(from), Split(to)
	if len(src) == 0 || len(dst) == 0 {
		return models.Note{}, fmt.Errorf("rename %s to %s: %w", from, to, apperr.ErrForbidden)
	}
	dstParent, dstName := dst[:len(dst)-1], dst[len(dst)-1]
	title, syntax := SplitName(dstName)

	var note models.Note
	err := fs.store.Update(ctx, lockKey(tenant, dstParent, title, syntax), func(q *store.Queries) error {
		node, err := resolve(ctx, q, tenant, src, false)
		if err != nil {
			return err
		}
		n, ok := node.(models.Note)
		if !ok {
			return fmt.Errorf("folders cannot be renamed: %w", apperr.ErrForbidden)
		}
		parent, err := resolveParent(ctx, q, tenant, dstParent)
		if err != nil {
			return err
		}
		if parent.ID != n.ParentID {
			return fmt.Errorf("notes cannot move between folders: %w", apperr.ErrForbidden)
		}
		if _, ok, err := q.FindFolder(ctx, tenant, parent.ID, dstName); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%q: %w", dstName, apperr.ErrIsADirectory)
		}

		existing, ok, err := q.FindNote(ctx, tenant, parent.ID, title, syntax)
		if err != nil {
			return err
		}
		if ok && existing.ID != n.ID {
			if err := q.DeleteNote(ctx, tenant, existing.ID); err != nil {
				return err
			}
		}

		now := fs.timestamp()
		if !now.After(n.UpdatedAt) {
			now = nextTimestamp(n.UpdatedAt)
		}
		if err := q.RenameNote(ctx, tenant, n.ID, title, syntax, now); err != nil {
			return err
		}
		note = n
		note.Title, note.Syntax, note.UpdatedAt = title, syntax, now
		return nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("rename %s to %s: %w", from, to, err)
	}
	fs.logger.Debug("note renamed",
		slog.String("tenant", tenant),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("id", note.ID))
	fs.notify(Change{
		Kind:   ChangeRenamed,
		Tenant: tenant,
		Path:   cleanPath(dst),
		From:   cleanPath(src),
		NoteID: note.ID,
	})
	return note, nil
}
