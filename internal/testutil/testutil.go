// Package testutil provides shared test helpers for setting up stores and
// seeded hierarchies.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/store"
)

// TestStore creates a migrated temporary SQLite store that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notedav-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	cfg := store.Config{Driver: store.DriverSQLite, Path: dbFile.Name()}
	if err := store.Migrate(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Fixture identifiers created by Seed.
const (
	SeedTenant      = "testuser"
	SeedWelcomeID   = "note-welcome"
	SeedDocumentsID = "folder-documents"
	SeedWorkID      = "folder-work"
	SeedMeetingID   = "note-meeting"
)

// SeedTime is the creation time of every seeded row.
var SeedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// Seed creates, for tenant "testuser":
//
//	/Welcome.md
//	/Documents/Work/Meeting Notes.md
func Seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, "seed", func(q *store.Queries) error {
		folders := []models.Folder{
			{ID: SeedDocumentsID, Title: "Documents"},
			{ID: SeedWorkID, Title: "Work", ParentID: SeedDocumentsID},
		}
		for _, f := range folders {
			f.UserID, f.CreatedAt, f.UpdatedAt = SeedTenant, SeedTime, SeedTime
			if err := q.InsertFolder(ctx, f); err != nil {
				return err
			}
		}
		notes := []models.Note{
			{ID: SeedWelcomeID, Title: "Welcome", Syntax: "md", Content: []byte("# Welcome\n")},
			{ID: SeedMeetingID, Title: "Meeting Notes", Syntax: "md", ParentID: SeedWorkID, Content: []byte("agenda\n")},
		}
		for _, n := range notes {
			n.UserID, n.CreatedAt, n.UpdatedAt = SeedTenant, SeedTime, SeedTime
			if err := q.InsertNote(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock { return &Clock{t: start} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
