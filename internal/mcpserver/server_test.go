package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notedav/internal/testutil"
	"github.com/starford/notedav/internal/vfs"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	s := testutil.TestStore(t)
	testutil.Seed(t, s)
	return New(vfs.New(s), testutil.SeedTenant, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_folder":
		result, err = srv.listFolder(ctx, req)
	case "stat":
		result, err = srv.stat(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "write_note":
		result, err = srv.writeNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "rename_note":
		result, err = srv.renameNote(ctx, req)
	case "get_path_layout":
		result, err = srv.getPathLayout(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestWriteAndReadNote(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "write_note", map[string]interface{}{
		"path":    "/Documents/report",
		"content": "# Report\n",
	})
	if r.IsError {
		t.Fatalf("write_note error: %s", resultText(r))
	}
	if text := resultText(r); text != "written: /Documents/report.md (9 bytes)" {
		t.Errorf("write result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "/Documents/report.md"})
	if text := resultText(r); text != "# Report\n" {
		t.Errorf("read result = %q", text)
	}
}

func TestListFolder(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_folder", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("list_folder error: %s", resultText(r))
	}
	var entries []entryJSON
	if err := json.Unmarshal([]byte(resultText(r)), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "Documents" || entries[0].Kind != "directory" ||
		entries[1].Name != "Welcome.md" || entries[1].Kind != "file" {
		t.Errorf("entries = %+v", entries)
	}

	r = callTool(t, srv, "list_folder", map[string]interface{}{"path": "/Welcome.md"})
	if !r.IsError {
		t.Error("expected error listing a note")
	}
}

func TestStat(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "stat", map[string]interface{}{"path": "/Documents/Work/Meeting Notes.md"})
	var e entryJSON
	if err := json.Unmarshal([]byte(resultText(r)), &e); err != nil {
		t.Fatalf("unmarshal %q: %v", resultText(r), err)
	}
	if e.Kind != "file" || e.Size != int64(len("agenda\n")) {
		t.Errorf("stat = %+v", e)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "/nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "/Documents"})
	if !r.IsError {
		t.Error("expected error reading a folder")
	}
}

func TestWriteUnderMissingFolder(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "write_note", map[string]interface{}{
		"path":    "/Nonexistent/file.md",
		"content": "x",
	})
	if !r.IsError {
		t.Error("expected error writing under a missing folder")
	}
}

func TestDeleteAndRename(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "rename_note", map[string]interface{}{"path": "/Welcome.md", "new_name": "Hello.txt"})
	if r.IsError {
		t.Fatalf("rename_note error: %s", resultText(r))
	}
	if text := resultText(r); text != "renamed: /Welcome.md -> /Hello.txt" {
		t.Errorf("rename result = %q", text)
	}
	r = callTool(t, srv, "rename_note", map[string]interface{}{"path": "/Hello.txt", "new_name": "Documents/x.md"})
	if !r.IsError {
		t.Error("expected error for a new_name with a folder")
	}

	r = callTool(t, srv, "delete_note", map[string]interface{}{"path": "/Hello.txt"})
	if r.IsError {
		t.Fatalf("delete_note error: %s", resultText(r))
	}
	r = callTool(t, srv, "delete_note", map[string]interface{}{"path": "/Documents"})
	if !r.IsError {
		t.Error("expected error deleting a folder")
	}
}

func TestGetPathLayout(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_path_layout", nil)
	if resultText(r) != PathLayout {
		t.Error("layout text mismatch")
	}
}
