package davfs

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/webdav"

	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/vfs"
)

type fileInfo struct {
	md vfs.Metadata
}

var (
	_ webdav.ContentTyper = fileInfo{}
	_ webdav.ETager       = fileInfo{}
)

func newFileInfo(md vfs.Metadata) fileInfo { return fileInfo{md: md} }

func (fi fileInfo) Name() string       { return fi.md.Name }
func (fi fileInfo) Size() int64        { return fi.md.Size }
func (fi fileInfo) ModTime() time.Time { return fi.md.Modified }
func (fi fileInfo) IsDir() bool        { return fi.md.IsDir() }
func (fi fileInfo) Sys() any           { return nil }

func (fi fileInfo) Mode() fs.FileMode {
	if fi.md.IsDir() {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

// ContentType answers from the note's syntax so PROPFIND does not have to
// open every note to sniff it.
func (fi fileInfo) ContentType(ctx context.Context) (string, error) {
	if fi.md.IsDir() {
		return "", webdav.ErrNotImplemented
	}
	i := strings.LastIndexByte(fi.md.Name, '.')
	if i < 0 {
		return "", webdav.ErrNotImplemented
	}
	ext := strings.ToLower(fi.md.Name[i:])
	if ext == ".md" || ext == ".markdown" {
		return "text/markdown; charset=utf-8", nil
	}
	if ctype := mime.TypeByExtension(ext); ctype != "" {
		return ctype, nil
	}
	return "", webdav.ErrNotImplemented
}

// ETag reports the note's version tag. Folders fall back to the handler's
// default.
func (fi fileInfo) ETag(ctx context.Context) (string, error) {
	if fi.md.ETag == "" {
		return "", webdav.ErrNotImplemented
	}
	return fi.md.ETag, nil
}

// dirFile is a read handle on a folder. Children are listed on the first
// Readdir call.
type dirFile struct {
	ctx    context.Context
	fs     vfs.Filesystem
	folder models.Folder
	info   fileInfo

	children []os.FileInfo
	listed   bool
	pos      int
}

func (f *dirFile) Close() error { return nil }

func (f *dirFile) Read(p []byte) (int, error) {
	return 0, &os.PathError{Op: "read", Path: f.info.Name(), Err: syscall.EISDIR}
}

func (f *dirFile) Write(p []byte) (int, error) {
	return 0, &os.PathError{Op: "write", Path: f.info.Name(), Err: syscall.EISDIR}
}

func (f *dirFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		f.pos = 0
		return 0, nil
	}
	return 0, &os.PathError{Op: "seek", Path: f.info.Name(), Err: os.ErrInvalid}
}

func (f *dirFile) Stat() (os.FileInfo, error) { return f.info, nil }

// Readdir follows os.File.Readdir: with count > 0 it returns at most count
// entries and io.EOF once exhausted; otherwise it returns all remaining.
func (f *dirFile) Readdir(count int) ([]os.FileInfo, error) {
	if !f.listed {
		for e, err := range f.fs.ListChildren(f.ctx, f.folder) {
			if err != nil {
				return nil, err
			}
			f.children = append(f.children, newFileInfo(e.Metadata))
		}
		f.listed = true
	}

	old := f.pos
	if old >= len(f.children) {
		if count > 0 {
			return nil, io.EOF
		}
		return nil, nil
	}
	if count > 0 {
		f.pos = min(f.pos+count, len(f.children))
	} else {
		f.pos = len(f.children)
	}
	return f.children[old:f.pos], nil
}

// noteFile is a read handle on a note's content.
type noteFile struct {
	*bytes.Reader
	info fileInfo
}

func newNoteFile(n models.Note, info fileInfo) *noteFile {
	return &noteFile{Reader: bytes.NewReader(n.Content), info: info}
}

func (f *noteFile) Close() error { return nil }

func (f *noteFile) Write(p []byte) (int, error) {
	return 0, &os.PathError{Op: "write", Path: f.info.Name(), Err: os.ErrPermission}
}

func (f *noteFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, &os.PathError{Op: "readdir", Path: f.info.Name(), Err: syscall.ENOTDIR}
}

func (f *noteFile) Stat() (os.FileInfo, error) { return f.info, nil }

// writeFile buffers written bytes and stores them as one write on Close.
type writeFile struct {
	ctx    context.Context
	d      *FileSystem
	tenant string
	name   string

	buf    []byte
	off    int64
	dirty  bool
	closed bool

	committed vfs.Metadata
}

// writeInfo describes a pending write. The handler asks for the ETag after
// Close, by which time the committed row is known.
type writeInfo struct {
	fileInfo
	f *writeFile
}

func (wi writeInfo) ETag(ctx context.Context) (string, error) {
	if wi.f.committed.ETag == "" {
		return "", webdav.ErrNotImplemented
	}
	return wi.f.committed.ETag, nil
}

func (f *writeFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	end := f.off + int64(len(p))
	if end > int64(len(f.buf)) {
		f.buf = append(f.buf, make([]byte, end-int64(len(f.buf)))...)
	}
	copy(f.buf[f.off:], p)
	f.off = end
	f.dirty = true
	return len(p), nil
}

func (f *writeFile) Read(p []byte) (int, error) {
	if f.off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.off:])
	f.off += int64(n)
	return n, nil
}

func (f *writeFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.off + offset
	case io.SeekEnd:
		abs = int64(len(f.buf)) + offset
	default:
		return 0, &os.PathError{Op: "seek", Path: f.name, Err: os.ErrInvalid}
	}
	if abs < 0 {
		return 0, &os.PathError{Op: "seek", Path: f.name, Err: os.ErrInvalid}
	}
	f.off = abs
	return abs, nil
}

func (f *writeFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, &os.PathError{Op: "readdir", Path: f.name, Err: syscall.ENOTDIR}
}

// Stat describes the pending content; the row is not written until Close.
func (f *writeFile) Stat() (os.FileInfo, error) {
	title, syntax := vfs.SplitName(path.Base(f.name))
	return writeInfo{
		fileInfo: newFileInfo(vfs.Metadata{
			Name:     title + "." + syntax,
			Kind:     vfs.KindFile,
			Size:     int64(len(f.buf)),
			Modified: time.Now(),
		}),
		f: f,
	}, nil
}

// Close commits the buffered content. A handle that was neither written
// nor opened to create or truncate leaves the note untouched.
func (f *writeFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.dirty {
		return nil
	}
	n, err := f.d.fs.Write(f.ctx, f.tenant, f.name, f.buf)
	if err != nil {
		return f.d.pathError("write", f.name, err)
	}
	f.committed = f.d.fs.Describe(n)
	return nil
}
