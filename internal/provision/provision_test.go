package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/notedav/internal/apperr"
	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/testutil"
	"github.com/starford/notedav/internal/vfs"
)

func TestAddFolderCreatesIntermediates(t *testing.T) {
	s := testutil.TestStore(t)
	p := New(s, nil)
	ctx := context.Background()

	f, created, err := p.AddFolder(ctx, "alice", "/Projects/2024/Q1")
	if err != nil {
		t.Fatalf("AddFolder: %v", err)
	}
	if created != 3 || f.Title != "Q1" {
		t.Errorf("AddFolder = %+v, created %d", f, created)
	}
	if f.CreatedAt.Nanosecond()%1000 != 0 || !f.UpdatedAt.Equal(f.CreatedAt) {
		t.Errorf("folder timestamps not at microsecond precision: %v %v", f.CreatedAt, f.UpdatedAt)
	}

	again, created, err := p.AddFolder(ctx, "alice", "/Projects/2024/Q1")
	if err != nil {
		t.Fatalf("AddFolder again: %v", err)
	}
	if created != 0 || again.ID != f.ID {
		t.Errorf("second AddFolder created %d, id %s want %s", created, again.ID, f.ID)
	}

	fs := vfs.New(s)
	if _, err := fs.Write(ctx, "alice", "/Projects/2024/Q1/plan.md", []byte("x")); err != nil {
		t.Errorf("write into provisioned folder: %v", err)
	}
	if _, err := fs.ResolveFolder(ctx, "bob", "/Projects"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("other tenant sees provisioned folder: %v", err)
	}
}

func TestAddFolderThroughNote(t *testing.T) {
	s := testutil.TestStore(t)
	testutil.Seed(t, s)
	p := New(s, nil)
	if _, _, err := p.AddFolder(context.Background(), testutil.SeedTenant, "/Welcome/Inner"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if _, _, err := p.AddFolder(context.Background(), testutil.SeedTenant, "/"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("root err = %v, want ErrForbidden", err)
	}
}

func TestRemoveFolderCascades(t *testing.T) {
	s := testutil.TestStore(t)
	testutil.Seed(t, s)
	p := New(s, nil)
	ctx := context.Background()

	if err := p.RemoveFolder(ctx, testutil.SeedTenant, "/Documents"); err != nil {
		t.Fatalf("RemoveFolder: %v", err)
	}
	fs := vfs.New(s)
	if _, err := fs.Resolve(ctx, testutil.SeedTenant, "/Documents/Work/Meeting Notes.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("descendant still resolves: %v", err)
	}
	var names []string
	for e, err := range fs.ListChildren(ctx, models.Root(testutil.SeedTenant)) {
		if err != nil {
			t.Fatalf("ListChildren: %v", err)
		}
		names = append(names, e.Name)
	}
	if len(names) != 1 || names[0] != "Welcome.md" {
		t.Errorf("root after remove = %v", names)
	}

	if err := p.RemoveFolder(ctx, testutil.SeedTenant, "/Documents"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}
