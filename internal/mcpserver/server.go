// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the notes filesystem as tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/vfs"
)

const layoutURI = "notedav://path-layout"

// Server wraps the MCP server with filesystem tools. Every tool acts on
// behalf of a single tenant fixed at construction.
type Server struct {
	mcp    *server.MCPServer
	fs     vfs.Filesystem
	tenant string
}

// New creates a new MCP server with all tools registered.
func New(fs vfs.Filesystem, tenant, version string) *Server {
	s := &Server{fs: fs, tenant: tenant}

	s.mcp = server.NewMCPServer(
		"notedav",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_folder",
		mcp.WithDescription("List the folders and notes directly inside a folder."),
		mcp.WithString("path", mcp.Description("Folder path (default /)")),
	), s.listFolder)

	s.mcp.AddTool(mcp.NewTool("stat",
		mcp.WithDescription("Describe the folder or note at a path: kind, size, timestamps and entity tag."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path, e.g. /Documents/plan.md")),
	), s.stat)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the note, e.g. /Documents/plan.md")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("write_note",
		mcp.WithDescription("Create a note or replace its content. The parent folder must exist. "+
			"Read the path layout via get_path_layout or the "+layoutURI+" resource first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the note; the extension selects the syntax")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content of the note")),
	), s.writeNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. Folders cannot be deleted."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the note")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename a note within its folder. A note already using the new name is replaced."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the note")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New file name, e.g. minutes.txt")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("get_path_layout",
		mcp.WithDescription("Returns how folders and notes map onto paths and how writes derive names."),
	), s.getPathLayout)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Path Layout",
			mcp.WithResourceDescription("How folders and notes map onto filesystem paths."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPathLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type entryJSON struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	ETag     string    `json:"etag,omitempty"`
}

func toJSON(md vfs.Metadata) entryJSON {
	return entryJSON{
		Name:     md.Name,
		Kind:     md.Kind.String(),
		Size:     md.Size,
		Created:  md.Created,
		Modified: md.Modified,
		ETag:     md.ETag,
	}
}

func (s *Server) listFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := req.GetString("path", "/")
	folder, err := s.fs.ResolveFolder(ctx, s.tenant, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries := []entryJSON{}
	for e, err := range s.fs.ListChildren(ctx, folder) {
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entries = append(entries, toJSON(e.Metadata))
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) stat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.fs.Resolve(ctx, s.tenant, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(toJSON(s.fs.Describe(node)), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.fs.Resolve(ctx, s.tenant, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, ok := node.(models.Note)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s is a folder", p)), nil
	}
	data, err := s.fs.Read(ctx, note)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) writeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.fs.Write(ctx, s.tenant, p, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	written := path.Join(path.Dir(path.Clean("/"+p)), note.FileName())
	return mcp.NewToolResultText(fmt.Sprintf("written: %s (%d bytes)", written, note.Size)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.fs.Remove(ctx, s.tenant, p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", p)), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if name == "" || path.Base(name) != name {
		return mcp.NewToolResultError("new_name must be a plain file name"), nil
	}
	to := path.Join(path.Dir(path.Clean("/"+p)), name)
	note, err := s.fs.Rename(ctx, s.tenant, p, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s -> %s", p, path.Join(path.Dir(to), note.FileName()))), nil
}

func (s *Server) getPathLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PathLayout), nil
}

func (s *Server) readPathLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     PathLayout,
		},
	}, nil
}
