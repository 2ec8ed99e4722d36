// Package api serves the notes filesystem over WebDAV using chi and
// golang.org/x/net/webdav.
package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/starford/notedav/internal/identity"
	"github.com/starford/notedav/internal/models"
	"github.com/starford/notedav/internal/vfs"
)

// BasicAuthMiddleware verifies HTTP Basic credentials and stores the tenant
// of the login in the request context. Failures get a 401 challenge.
func BasicAuthMiddleware(creds identity.Credentials, scope *identity.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !creds.Verify(user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="WebDAV"`)
				writeJSON(w, http.StatusUnauthorized, errorBody(r, "unauthorized"))
				return
			}
			ctx := identity.WithTenant(r.Context(), scope.Tenant(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CharsetMiddleware adds "; charset=utf-8" to text/* responses that declare
// no charset.
func CharsetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&charsetWriter{ResponseWriter: w}, r)
	})
}

type charsetWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (cw *charsetWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.wroteHeader = true
		h := cw.Header()
		ct := h.Get("Content-Type")
		if strings.HasPrefix(ct, "text/") && !strings.Contains(strings.ToLower(ct), "charset=") {
			h.Set("Content-Type", ct+"; charset=utf-8")
		}
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *charsetWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *charsetWriter) Unwrap() http.ResponseWriter { return cw.ResponseWriter }

// RootDeleteMiddleware answers DELETE on the tree root with 403.
func RootDeleteMiddleware(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				if p, ok := stripPrefix(prefix, r.URL.Path); ok && path.Clean("/"+p) == "/" {
					writeJSON(w, http.StatusForbidden, errorBody(r, "the root cannot be deleted"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DestinationGuardMiddleware vets MOVE and COPY before the webdav handler,
// which deletes an existing destination ahead of the actual rename or copy.
// MOVE is limited to notes within one folder. Neither method may target a
// name that resolves to the source note itself ("/a.md" and "/a" or
// "/a.MD"), since deleting the destination would delete the source.
func DestinationGuardMiddleware(fs vfs.Filesystem, prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "MOVE" && r.Method != "COPY" {
				next.ServeHTTP(w, r)
				return
			}
			u, err := url.Parse(r.Header.Get("Destination"))
			if err != nil || (u.Host != "" && u.Host != r.Host) {
				next.ServeHTTP(w, r)
				return
			}
			src, ok1 := stripPrefix(prefix, r.URL.Path)
			dst, ok2 := stripPrefix(prefix, u.Path)
			if !ok1 || !ok2 {
				next.ServeHTTP(w, r)
				return
			}
			src, dst = path.Clean("/"+src), path.Clean("/"+dst)
			if r.Method == "MOVE" && (src == "/" || path.Dir(src) != path.Dir(dst)) {
				writeJSON(w, http.StatusForbidden, errorBody(r, "notes can only be renamed within their folder"))
				return
			}

			tenant, ok := identity.TenantFromContext(r.Context())
			if !ok || src == dst {
				next.ServeHTTP(w, r)
				return
			}
			node, err := fs.Resolve(r.Context(), tenant, src)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			switch n := node.(type) {
			case models.Folder:
				if r.Method == "MOVE" {
					writeJSON(w, http.StatusForbidden, errorBody(r, "folders cannot be renamed"))
					return
				}
			case models.Note:
				if target, err := fs.Resolve(r.Context(), tenant, dst); err == nil {
					if tn, isNote := target.(models.Note); isNote && tn.ID == n.ID {
						writeJSON(w, http.StatusForbidden, errorBody(r, "destination names the source note"))
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BufferBodyMiddleware reads PUT bodies in full before the request reaches
// the filesystem, so an aborted upload never starts a write.
func BufferBodyMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			body := io.Reader(r.Body)
			if maxBytes > 0 {
				body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			data, err := io.ReadAll(body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(r, "request body too large"))
					return
				}
				writeJSON(w, http.StatusBadRequest, errorBody(r, "failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(data))
			r.ContentLength = int64(len(data))
			next.ServeHTTP(w, r)
		})
	}
}

// stripPrefix mirrors webdav.Handler's prefix handling.
func stripPrefix(prefix, p string) (string, bool) {
	if prefix == "" {
		return p, true
	}
	if rest := strings.TrimPrefix(p, prefix); len(rest) < len(p) {
		return rest, true
	}
	return p, false
}
