// Package models defines the domain types for notedav.
package models

import "time"

// Node is a resolved path: either a Folder or a Note. The set is closed;
// consumers switch on the concrete type.
type Node interface {
	node()
}

// Folder is a row of the folders table. The zero ID denotes the tenant's
// root scope, which has no row of its own.
type Folder struct {
	ID        string
	Title     string
	ParentID  string // empty at root level
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Root returns the implicit root folder of a tenant.
func Root(tenant string) Folder {
	return Folder{UserID: tenant}
}

// IsRoot reports whether f is the implicit root.
func (f Folder) IsRoot() bool { return f.ID == "" }

func (Folder) node() {}

// Note is a row of the notes table. Size is the byte length of Content;
// it is filled from the store even when Content itself was not loaded.
type Note struct {
	ID        string
	Title     string
	Abstract  string
	Content   []byte
	Syntax    string
	ParentID  string // empty at root level
	UserID    string
	Size      int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileName is the filesystem name of the note: "{title}.{syntax}".
func (n Note) FileName() string {
	return n.Title + "." + n.Syntax
}

func (Note) node() {}
