// Package provision creates and removes folders directly in the store. It is
// the out-of-band tooling behind the "folder" subcommands; the filesystem
// surfaces never create or remove folders themselves.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notedav/internal/apperr"
	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/store"
	"github.com/starford/notedav/internal/vfs"
)

// Provisioner manages folders for any tenant.
type Provisioner struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Provisioner on s.
func New(s *store.Store, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{store: s, logger: logger, now: time.Now}
}

// AddFolder makes sure every folder on path exists for tenant, creating the
// missing ones. It returns the deepest folder and how many were created.
// Adding an existing path is a no-op.
func (p *Provisioner) AddFolder(ctx context.Context, tenant, path string) (models.Folder, int, error) {
	segs := vfs.Split(path)
	if len(segs) == 0 {
		return models.Folder{}, 0, fmt.Errorf("add folder /: %w", apperr.ErrForbidden)
	}

	var (
		cur     = models.Root(tenant)
		created int
	)
	err := p.store.Update(ctx, tenant+"\x00folders", func(q *store.Queries) error {
		for i, seg := range segs {
			f, ok, err := q.FindFolder(ctx, tenant, cur.ID, seg)
			if err != nil {
				return err
			}
			if ok {
				cur = f
				continue
			}
			title, syntax := vfs.SplitName(seg)
			if _, isNote, err := q.FindNote(ctx, tenant, cur.ID, title, syntax); err != nil {
				return err
			} else if isNote {
				return fmt.Errorf("%s is a note: %w", strings.Join(segs[:i+1], "/"), apperr.ErrConflict)
			}

			now := p.now().UTC().Truncate(time.Microsecond)
			f = models.Folder{
				ID:        uuid.NewString(),
				Title:     seg,
				ParentID:  cur.ID,
				UserID:    tenant,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := q.InsertFolder(ctx, f); err != nil {
				return err
			}
			cur = f
			created++
		}
		return nil
	})
	if err != nil {
		return models.Folder{}, 0, fmt.Errorf("add folder %s: %w", path, err)
	}
	p.logger.Info("folder provisioned",
		slog.String("tenant", tenant),
		slog.String("path", path),
		slog.String("id", cur.ID),
		slog.Int("created", created))
	return cur, created, nil
}

// RemoveFolder deletes the folder at path together with everything below it.
func (p *Provisioner) RemoveFolder(ctx context.Context, tenant, path string) error {
	segs := vfs.Split(path)
	if len(segs) == 0 {
		return fmt.Errorf("remove folder /: %w", apperr.ErrForbidden)
	}
	var removed models.Folder
	err := p.store.Update(ctx, tenant+"\x00folders", func(q *store.Queries) error {
		cur := models.Root(tenant)
		for _, seg := range segs {
			f, ok, err := q.FindFolder(ctx, tenant, cur.ID, seg)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("folder %q: %w", seg, apperr.ErrNotFound)
			}
			cur = f
		}
		removed = cur
		return q.DeleteFolder(ctx, tenant, cur.ID)
	})
	if err != nil {
		return fmt.Errorf("remove folder %s: %w", path, err)
	}
	p.logger.Info("folder removed",
		slog.String("tenant", tenant),
		slog.String("path", path),
		slog.String("id", removed.ID))
	return nil
}
