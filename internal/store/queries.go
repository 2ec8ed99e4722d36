package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/notedav/internal/apperr"
	"github.com/starford/notedav/internal/models"
)

// Queries issues statements inside one transaction. It is only valid for
// the duration of the View or Update callback that received it.
type Queries struct {
	tx     *sql.Tx
	d      *dialect
	logger *slog.Logger
}

const folderColumns = `id, title, parent_id, user_id, created_at, updated_at`

const noteColumns = `id, title, abstract, syntax, parent_id, user_id, {{octets}}, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (models.Folder, error) {
	var (
		f      models.Folder
		parent sql.NullString
	)
	err := row.Scan(&f.ID, &f.Title, &parent, &f.UserID,
		timestamp{&f.CreatedAt}, timestamp{&f.UpdatedAt})
	f.ParentID = parent.String
	return f, err
}

func scanNote(row rowScanner, withContent bool) (models.Note, error) {
	var (
		n        models.Note
		abstract sql.NullString
		parent   sql.NullString
	)
	dest := []any{&n.ID, &n.Title, &abstract}
	if withContent {
		dest = append(dest, &n.Content)
	}
	dest = append(dest, &n.Syntax, &parent, &n.UserID, &n.Size,
		timestamp{&n.CreatedAt}, timestamp{&n.UpdatedAt})
	err := row.Scan(dest...)
	n.Abstract = abstract.String
	n.ParentID = parent.String
	return n, err
}

// FindFolder returns the folder titled title directly under parentID (empty
// for root). The schema does not make folder titles unique, so when several
// rows match the one with the lowest id wins and a warning is logged.
func (q *Queries) FindFolder(ctx context.Context, tenant, parentID, title string) (models.Folder, bool, error) {
	rows, err := q.tx.QueryContext(ctx, q.d.sql(`
		SELECT `+folderColumns+`
		FROM folders
		WHERE title = ? AND parent_id IS ? AND user_id = ?
		ORDER BY id
		LIMIT 2`), title, nullable(parentID), tenant)
	if err != nil {
		return models.Folder{}, false, apperr.Store("find folder", err)
	}
	defer rows.Close()

	var (
		found models.Folder
		count int
	)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return models.Folder{}, false, apperr.Store("scan folder", err)
		}
		if count == 0 {
			found = f
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return models.Folder{}, false, apperr.Store("find folder", err)
	}
	if count > 1 {
		q.logger.Warn("duplicate folder title in scope, using lowest id",
			slog.String("title", title),
			slog.String("parent_id", parentID),
			slog.String("user_id", tenant),
			slog.String("id", found.ID))
	}
	return found, count > 0, nil
}

// FindNote returns the note (without content) matching title and syntax
// directly under parentID. Syntax is compared case-insensitively.
func (q *Queries) FindNote(ctx context.Context, tenant, parentID, title, syntax string) (models.Note, bool, error) {
	row := q.tx.QueryRowContext(ctx, q.d.sql(`
		SELECT `+noteColumns+`
		FROM notes
		WHERE title = ? AND lower(syntax) = ? AND parent_id IS ? AND user_id = ?
		ORDER BY id
		LIMIT 1`), title, strings.ToLower(syntax), nullable(parentID), tenant)
	n, err := scanNote(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, false, nil
	}
	if err != nil {
		return models.Note{}, false, apperr.Store("find note", err)
	}
	return n, true, nil
}

// GetNote loads the full row of a note, content included.
func (q *Queries) GetNote(ctx context.Context, tenant, id string) (models.Note, error) {
	row := q.tx.QueryRowContext(ctx, q.d.sql(`
		SELECT id, title, abstract, content, syntax, parent_id, user_id, {{octets}}, created_at, updated_at
		FROM notes
		WHERE id = ? AND user_id = ?`), id, tenant)
	n, err := scanNote(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Note{}, apperr.Store("get note", err)
	}
	if n.Content == nil {
		n.Content = []byte{}
	}
	return n, nil
}

// ChildFolders yields the folders directly under parentID, ordered by title.
func (q *Queries) ChildFolders(ctx context.Context, tenant, parentID string) iter.Seq2[models.Folder, error] {
	return func(yield func(models.Folder, error) bool) {
		rows, err := q.tx.QueryContext(ctx, q.d.sql(`
			SELECT `+folderColumns+`
			FROM folders
			WHERE parent_id IS ? AND user_id = ?
			ORDER BY title, id`), nullable(parentID), tenant)
		if err != nil {
			yield(models.Folder{}, apperr.Store("list folders", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			f, err := scanFolder(rows)
			if err != nil {
				yield(models.Folder{}, apperr.Store("scan folder", err))
				return
			}
			if !yield(f, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Folder{}, apperr.Store("list folders", err))
		}
	}
}

// ChildNotes yields the notes (without content) directly under parentID,
// ordered by title and syntax.
func (q *Queries) ChildNotes(ctx context.Context, tenant, parentID string) iter.Seq2[models.Note, error] {
	return func(yield func(models.Note, error) bool) {
		rows, err := q.tx.QueryContext(ctx, q.d.sql(`
			SELECT `+noteColumns+`
			FROM notes
			WHERE parent_id IS ? AND user_id = ?
			ORDER BY title, syntax, id`), nullable(parentID), tenant)
		if err != nil {
			yield(models.Note{}, apperr.Store("list notes", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			n, err := scanNote(rows, false)
			if err != nil {
				yield(models.Note{}, apperr.Store("scan note", err))
				return
			}
			if !yield(n, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Note{}, apperr.Store("list notes", err))
		}
	}
}

// InsertNote creates a note row. A clash on (parent_id, title, syntax) or
// on the id yields apperr.ErrAlreadyExists.
func (q *Queries) InsertNote(ctx context.Context, n models.Note) error {
	_, err := q.tx.ExecContext(ctx, q.d.sql(`
		INSERT INTO notes (id, title, abstract, content, syntax, parent_id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		n.ID, n.Title, nullable(n.Abstract), q.d.contentArg(n.Content), n.Syntax,
		nullable(n.ParentID), n.UserID, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil && q.d.isUnique(err) {
		return fmt.Errorf("insert note %q: %w", n.FileName(), apperr.ErrAlreadyExists)
	}
	return apperr.Store("insert note", err)
}

// UpdateNoteContent replaces the content of a note and sets updated_at.
func (q *Queries) UpdateNoteContent(ctx context.Context, tenant, id string, content []byte, updatedAt time.Time) error {
	res, err := q.tx.ExecContext(ctx, q.d.sql(`
		UPDATE notes SET content = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`),
		q.d.contentArg(content), updatedAt.UTC(), id, tenant)
	if err != nil {
		return apperr.Store("update note", err)
	}
	return expectOne(res, "update note", id)
}

// DeleteNote removes a note.
func (q *Queries) DeleteNote(ctx context.Context, tenant, id string) error {
	res, err := q.tx.ExecContext(ctx, q.d.sql(`DELETE FROM notes WHERE id = ? AND user_id = ?`), id, tenant)
	if err != nil {
		return apperr.Store("delete note", err)
	}
	return expectOne(res, "delete note", id)
}

// InsertFolder creates a folder row.
func (q *Queries) InsertFolder(ctx context.Context, f models.Folder) error {
	_, err := q.tx.ExecContext(ctx, q.d.sql(`
		INSERT INTO folders (id, title, parent_id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		f.ID, f.Title, nullable(f.ParentID), f.UserID, f.CreatedAt.UTC(), f.UpdatedAt.UTC())
	if err != nil && q.d.isUnique(err) {
		return fmt.Errorf("insert folder %q: %w", f.Title, apperr.ErrAlreadyExists)
	}
	return apperr.Store("insert folder", err)
}

// DeleteFolder removes a folder. Descendant folders and notes go with it
// through ON DELETE CASCADE.
func (q *Queries) DeleteFolder(ctx context.Context, tenant, id string) error {
	res, err := q.tx.ExecContext(ctx, q.d.sql(`DELETE FROM folders WHERE id = ? AND user_id = ?`), id, tenant)
	if err != nil {
		return apperr.Store("delete folder", err)
	}
	return expectOne(res, "delete folder", id)
}

func expectOne(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Store(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, apperr.ErrNotFound)
	}
	return nil
}

// RenameNote changes the title and syntax of a note in place.
func (q *Queries) RenameNote(ctx context.Context, tenant, id, title, syntax string, updatedAt time.Time) error {
	res, err := q.tx.ExecContext(ctx, q.d.sql(`
		UPDATE notes SET title = ?, syntax = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`),
		title, syntax, updatedAt.UTC(), id, tenant)
	if err != nil {
		if q.d.isUnique(err) {
			return fmt.Errorf("rename note %s to %q: %w", id, title+"."+syntax, apperr.ErrAlreadyExists)
		}
		return apperr.Store("rename note", err)
	}
	return expectOne(res, "rename note", id)
}
