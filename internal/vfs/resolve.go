package vfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/notedav/internal/apperr"
	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/store"
)

// Resolve maps path to the folder or note it names for tenant. It fails with
// apperr.ErrNotFound when a segment matches nothing and with
// apperr.ErrNotADirectory when a segment other than the last names a note.
func (fs *FS) Resolve(ctx context.Context, tenant, path string) (models.Node, error) {
	segs := Split(path)
	if len(segs) == 0 {
		return models.Root(tenant), nil
	}
	var node models.Node
	err := fs.store.View(ctx, func(q *store.Queries) error {
		var err error
		node, err = resolve(ctx, q, tenant, segs, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	return node, nil
}

// ResolveFolder is Resolve restricted to folders: a note anywhere on the path
// fails with apperr.ErrNotADirectory.
func (fs *FS) ResolveFolder(ctx context.Context, tenant, path string) (models.Folder, error) {
	segs := Split(path)
	if len(segs) == 0 {
		return models.Root(tenant), nil
	}
	var folder models.Folder
	err := fs.store.View(ctx, func(q *store.Queries) error {
		var err error
		folder, err = resolveFolder(ctx, q, tenant, segs)
		return err
	})
	if err != nil {
		return models.Folder{}, fmt.Errorf("resolve folder %s: %w", path, err)
	}
	return folder, nil
}

func resolveFolder(ctx context.Context, q *store.Queries, tenant string, segs []string) (models.Folder, error) {
	node, err := resolve(ctx, q, tenant, segs, true)
	if err != nil {
		return models.Folder{}, err
	}
	return node.(models.Folder), nil
}

// resolve folds segs from the tenant root. At each step a folder match wins
// over a note match.
func resolve(ctx context.Context, q *store.Queries, tenant string, segs []string, folderOnly bool) (models.Node, error) {
	cur := models.Root(tenant)
	for i, seg := range segs {
		f, ok, err := q.FindFolder(ctx, tenant, cur.ID, seg)
		if err != nil {
			return nil, err
		}
		if ok {
			cur = f
			continue
		}

		title, syntax := SplitName(seg)
		n, ok, err := q.FindNote(ctx, tenant, cur.ID, title, syntax)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%q: %w", seg, apperr.ErrNotFound)
		}
		if i < len(segs)-1 || folderOnly {
			return nil, fmt.Errorf("%q: %w", seg, apperr.ErrNotADirectory)
		}
		return n, nil
	}
	return cur, nil
}

// resolveParent resolves the folder a write into segs targets. Anything but
// an existing folder is a conflict.
func resolveParent(ctx context.Context, q *store.Queries, tenant string, parent []string) (models.Folder, error) {
	f, err := resolveFolder(ctx, q, tenant, parent)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrNotADirectory) {
		return models.Folder{}, fmt.Errorf("parent of target: %w: %w", apperr.ErrConflict, err)
	}
	return f, err
}
