// Package davfs binds the virtual filesystem to golang.org/x/net/webdav.
// The tenant of every call is taken from the request context (see
// identity.WithTenant); calls without one are refused.
package davfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"syscall"

	"golang.org/x/net/webdav"

	"github.com/starford/notedav/internal/apperr"
	"github.com/starford/notedav/internal/identity"
	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/vfs"
)

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC

// FileSystem implements webdav.FileSystem over a vfs.Filesystem.
type FileSystem struct {
	fs     vfs.Filesystem
	logger *slog.Logger
}

var _ webdav.FileSystem = (*FileSystem)(nil)

// New returns a FileSystem serving fs.
func New(fs vfs.Filesystem, logger *slog.Logger) *FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystem{fs: fs, logger: logger}
}

// Mkdir is refused: folders are provisioned outside the filesystem.
func (d *FileSystem) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrPermission}
}

// Stat resolves name and describes it.
func (d *FileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	tenant, err := d.tenant(ctx, "stat", name)
	if err != nil {
		return nil, err
	}
	node, err := d.fs.Resolve(ctx, tenant, name)
	if err != nil {
		return nil, d.pathError("stat", name, err)
	}
	return newFileInfo(d.fs.Describe(node)), nil
}

// OpenFile opens a folder or note for reading, or a note for writing when
// flag carries any write bit. Written content is committed on Close.
func (d *FileSystem) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	tenant, err := d.tenant(ctx, "open", name)
	if err != nil {
		return nil, err
	}
	if flag&writeFlags == 0 {
		return d.openRead(ctx, tenant, name)
	}
	return d.openWrite(ctx, tenant, name, flag)
}

func (d *FileSystem) openRead(ctx context.Context, tenant, name string) (webdav.File, error) {
	node, err := d.fs.Resolve(ctx, tenant, name)
	if err != nil {
		return nil, d.pathError("open", name, err)
	}
	switch n := node.(type) {
	case models.Folder:
		return &dirFile{ctx: ctx, fs: d.fs, folder: n, info: newFileInfo(d.fs.Describe(n))}, nil
	case models.Note:
		full, err := d.fs.ReadNote(ctx, n)
		if err != nil {
			return nil, d.pathError("open", name, err)
		}
		return newNoteFile(full, newFileInfo(d.fs.Describe(full))), nil
	}
	return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrInvalid}
}

func (d *FileSystem) openWrite(ctx context.Context, tenant, name string, flag int) (webdav.File, error) {
	w := &writeFile{ctx: ctx, d: d, tenant: tenant, name: name, dirty: flag&os.O_TRUNC != 0}

	node, err := d.fs.Resolve(ctx, tenant, name)
	switch {
	case err == nil:
		n, ok := node.(models.Note)
		if !ok {
			return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EISDIR}
		}
		if flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrExist}
		}
		if flag&os.O_TRUNC == 0 {
			full, err := d.fs.ReadNote(ctx, n)
			if err != nil {
				return nil, d.pathError("open", name, err)
			}
			w.buf = append(w.buf, full.Content...)
		}
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrNotADirectory):
		if flag&os.O_CREATE == 0 {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
		}
		// Fail at open rather than at commit so PUT reports 409.
		if _, err := d.fs.ResolveFolder(ctx, tenant, path.Dir(name)); err != nil {
			return nil, d.pathError("open", name, fmt.Errorf("%w: %w", apperr.ErrConflict, err))
		}
		w.dirty = true
	default:
		return nil, d.pathError("open", name, err)
	}
	return w, nil
}

// RemoveAll deletes the note at name. Folders and the root are refused.
func (d *FileSystem) RemoveAll(ctx context.Context, name string) error {
	tenant, err := d.tenant(ctx, "remove", name)
	if err != nil {
		return err
	}
	if err := d.fs.Remove(ctx, tenant, name); err != nil {
		return d.pathError("remove", name, err)
	}
	return nil
}

// Rename renames a note within its folder.
func (d *FileSystem) Rename(ctx context.Context, oldName, newName string) error {
	tenant, err := d.tenant(ctx, "rename", oldName)
	if err != nil {
		return err
	}
	if _, err := d.fs.Rename(ctx, tenant, oldName, newName); err != nil {
		return d.pathError("rename", oldName, err)
	}
	return nil
}

func (d *FileSystem) tenant(ctx context.Context, op, name string) (string, error) {
	tenant, ok := identity.TenantFromContext(ctx)
	if !ok {
		return "", &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
	}
	return tenant, nil
}

// pathError maps the adapter's error taxonomy onto the os errors the webdav
// handler inspects. os.IsNotExist and friends do not follow wrap chains, so
// the mapped error replaces err and err itself is logged.
func (d *FileSystem) pathError(op, name string, err error) error {
	var mapped error
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrConflict):
		mapped = os.ErrNotExist
	case errors.Is(err, apperr.ErrNotADirectory):
		mapped = syscall.ENOTDIR
	case errors.Is(err, apperr.ErrForbidden):
		mapped = os.ErrPermission
	case errors.Is(err, apperr.ErrIsADirectory):
		mapped = syscall.EISDIR
	case errors.Is(err, apperr.ErrAlreadyExists):
		mapped = os.ErrExist
	default:
		d.logger.Error("filesystem operation failed",
			slog.String("op", op),
			slog.String("path", name),
			slog.String("error", err.Error()))
		return &os.PathError{Op: op, Path: name, Err: err}
	}
	d.logger.Debug("filesystem operation refused",
		slog.String("op", op),
		slog.String("path", name),
		slog.String("error", err.Error()))
	return &os.PathError{Op: op, Path: name, Err: mapped}
}
