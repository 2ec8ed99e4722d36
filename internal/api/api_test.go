package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/notedav/internal/identity"
	"github.com/starford/notedav/internal/testutil"
	"github.com/starford/notedav/internal/vfs"
)

const (
	testLogin    = "testuser"
	testPassword = "secret"
)

// testEnv seeds a temp store and returns a router authenticated with
// testLogin/testPassword.
func testEnv(t *testing.T, opts Options) http.Handler {
	t.Helper()
	s := testutil.TestStore(t)
	testutil.Seed(t, s)
	if opts.Credentials.Username == "" {
		opts.Credentials = identity.Credentials{Username: testLogin, Password: testPassword}
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return NewRouter(vfs.New(s), s, opts)
}

func do(t *testing.T, h http.Handler, method, target string, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.SetBasicAuth(testLogin, testPassword)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := testEnv(t, Options{})
	for _, p := range []string{"/_health/live", "/_health/ready"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, body = %s", p, w.Code, w.Body.String())
		}
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }
func (downStore) Driver() string             { return "sqlite" }

func TestReadiness(t *testing.T) {
	router := testEnv(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/_health/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"store":"sqlite"`) {
		t.Errorf("ready body = %s", w.Body.String())
	}

	s := testutil.TestStore(t)
	down := NewRouter(vfs.New(s), downStore{}, Options{})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/_health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with store down = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"request_id"`) {
		t.Errorf("error body lacks request id: %s", w.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	router := testEnv(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/Welcome.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no credentials status = %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Basic realm="WebDAV"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/Welcome.md", nil)
	req.SetBasicAuth(testLogin, "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", w.Code)
	}
}

func TestPutAndGet(t *testing.T) {
	router := testEnv(t, Options{})

	w := do(t, router, http.MethodPut, "/Documents/new.md", "# New\n", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/Documents/new.md", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	if w.Body.String() != "# New\n" {
		t.Errorf("body = %q", w.Body.String())
	}
	ct := w.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/") || !strings.Contains(ct, "charset=utf-8") {
		t.Errorf("Content-Type = %q", ct)
	}

	w = do(t, router, http.MethodGet, "/Documents/Work/Meeting%20Notes.md", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "agenda\n" {
		t.Errorf("GET seeded note = %d %q", w.Code, w.Body.String())
	}
}

func TestETag(t *testing.T) {
	router := testEnv(t, Options{})

	w := do(t, router, http.MethodPut, "/tagged.md", "v1", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d", w.Code)
	}
	putTag := w.Header().Get("ETag")
	if putTag == "" {
		t.Fatal("PUT returned no ETag")
	}

	w = do(t, router, http.MethodGet, "/tagged.md", "", nil)
	if got := w.Header().Get("ETag"); got != putTag {
		t.Errorf("GET ETag = %s, want %s", got, putTag)
	}

	w = do(t, router, http.MethodGet, "/tagged.md", "", map[string]string{"If-None-Match": putTag})
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", w.Code)
	}

	w = do(t, router, http.MethodPut, "/tagged.md", "v2", nil)
	if w.Code != http.StatusNoContent && w.Code != http.StatusCreated {
		t.Fatalf("second PUT status = %d", w.Code)
	}
	if got := w.Header().Get("ETag"); got == putTag || got == "" {
		t.Errorf("ETag after rewrite = %q", got)
	}
}

func TestPutUnderMissingParent(t *testing.T) {
	router := testEnv(t, Options{})
	w := do(t, router, http.MethodPut, "/Nonexistent/file.md", "x", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("PUT status = %d, want 409", w.Code)
	}
}

func TestPutTooLarge(t *testing.T) {
	router := testEnv(t, Options{MaxBodyBytes: 4})
	w := do(t, router, http.MethodPut, "/big.md", "0123456789", nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("PUT status = %d, want 413", w.Code)
	}
	w = do(t, router, http.MethodGet, "/big.md", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET after rejected PUT status = %d, want 404", w.Code)
	}
}

func TestPropfind(t *testing.T) {
	router := testEnv(t, Options{})
	w := do(t, router, "PROPFIND", "/", "", map[string]string{"Depth": "1"})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"/Documents/", "/Welcome.md", "<D:collection"} {
		if !strings.Contains(body, want) {
			t.Errorf("PROPFIND body missing %q", want)
		}
	}
}

func TestDelete(t *testing.T) {
	router := testEnv(t, Options{})
	if w := do(t, router, http.MethodDelete, "/", "", nil); w.Code != http.StatusForbidden {
		t.Errorf("DELETE / status = %d, want 403", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/Documents", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE folder status = %d, want 405", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/Welcome.md", "", nil); w.Code != http.StatusNoContent {
		t.Errorf("DELETE note status = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/Welcome.md", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("GET deleted note status = %d, want 404", w.Code)
	}
}

func TestMkcolRefused(t *testing.T) {
	router := testEnv(t, Options{})
	if w := do(t, router, "MKCOL", "/New", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("MKCOL status = %d, want 405", w.Code)
	}
}

func TestMove(t *testing.T) {
	router := testEnv(t, Options{})

	w := do(t, router, "MOVE", "/Welcome.md", "", map[string]string{"Destination": "http://example.com/Hello.md"})
	if w.Code != http.StatusCreated {
		t.Fatalf("MOVE status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/Hello.md", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET renamed note status = %d", w.Code)
	}

	do(t, router, http.MethodPut, "/Documents/Hello.md", "keep me", nil)
	w = do(t, router, "MOVE", "/Hello.md", "", map[string]string{
		"Destination": "http://example.com/Documents/Hello.md",
		"Overwrite":   "T",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-folder MOVE status = %d, want 403", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/Documents/Hello.md", "", nil); w.Body.String() != "keep me" {
		t.Errorf("destination after refused MOVE = %d %q", w.Code, w.Body.String())
	}

	w = do(t, router, "MOVE", "/Documents", "", map[string]string{"Destination": "http://example.com/Docs"})
	if w.Code != http.StatusForbidden {
		t.Errorf("folder MOVE status = %d, want 403", w.Code)
	}
}

func TestMoveAndCopyOntoSourceNote(t *testing.T) {
	router := testEnv(t, Options{})

	for _, method := range []string{"MOVE", "COPY"} {
		for _, dst := range []string{"/Welcome", "/Welcome.MD", "/Welcome."} {
			w := do(t, router, method, "/Welcome.md", "", map[string]string{
				"Destination": "http://example.com" + dst,
				"Overwrite":   "T",
			})
			if w.Code != http.StatusForbidden {
				t.Errorf("%s to %s status = %d, want 403", method, dst, w.Code)
			}
		}
	}

	w := do(t, router, http.MethodGet, "/Welcome.md", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "# Welcome\n" {
		t.Fatalf("note after refused MOVE/COPY = %d %q", w.Code, w.Body.String())
	}

	w = do(t, router, "PROPFIND", "/Welcome.md", "", map[string]string{"Depth": "0"})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), testutil.SeedTime.Format(http.TimeFormat)) {
		t.Errorf("creation/modification time changed, body = %s", w.Body.String())
	}

	w = do(t, router, "COPY", "/Welcome.md", "", map[string]string{
		"Destination": "http://example.com/Documents/Welcome.md",
	})
	if w.Code != http.StatusCreated {
		t.Errorf("COPY to another folder status = %d, want 201", w.Code)
	}
}

func TestTenantMapping(t *testing.T) {
	router := testEnv(t, Options{
		Credentials: identity.Credentials{Username: "alice", Password: "pw"},
		Scope:       identity.NewScope(map[string]string{"alice": testutil.SeedTenant}),
	})
	req := httptest.NewRequest(http.MethodGet, "/Welcome.md", nil)
	req.SetBasicAuth("alice", "pw")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET as mapped login status = %d", w.Code)
	}
}

func TestUnmappedLoginSeesOwnTenant(t *testing.T) {
	router := testEnv(t, Options{
		Credentials: identity.Credentials{Username: "otheruser", Password: "pw"},
	})
	req := httptest.NewRequest(http.MethodGet, "/Documents/Work/Meeting%20Notes.md", nil)
	req.SetBasicAuth("otheruser", "pw")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET as otheruser status = %d, want 404", w.Code)
	}
}

func TestPrefix(t *testing.T) {
	router := testEnv(t, Options{Prefix: "/dav"})
	if w := do(t, router, http.MethodGet, "/dav/Welcome.md", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET with prefix status = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/dav/", "", nil); w.Code != http.StatusForbidden {
		t.Errorf("DELETE prefixed root status = %d, want 403", w.Code)
	}
}

func TestCharsetMiddleware(t *testing.T) {
	tests := []struct {
		set, want string
	}{
		{"text/csv", "text/csv; charset=utf-8"},
		{"text/plain; charset=iso-8859-1", "text/plain; charset=iso-8859-1"},
		{"application/octet-stream", "application/octet-stream"},
	}
	for _, tt := range tests {
		h := CharsetMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", tt.set)
			_, _ = w.Write([]byte("x"))
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if got := w.Header().Get("Content-Type"); got != tt.want {
			t.Errorf("Content-Type(%q) = %q, want %q", tt.set, got, tt.want)
		}
	}
}

func TestEventsRoute(t *testing.T) {
	var gotTenant string
	router := testEnv(t, Options{
		Events: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotTenant, _ = identity.TenantFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	})

	req := httptest.NewRequest(http.MethodGet, "/_events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	w = do(t, router, http.MethodGet, "/_events", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotTenant != testLogin {
		t.Errorf("tenant = %q, want %q", gotTenant, testLogin)
	}
}
