package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/webdav"

	"github.com/starford/notedav/internal/davfs"
	"github.com/starford/notedav/internal/identity"
	"github.com/starford/notedav/internal/vfs"
)

// WebDAV methods chi does not know about. They must be registered before
// any route so that catch-all routes accept them.
func init() {
	for _, m := range []string{"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK"} {
		chi.RegisterMethod(m)
	}
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
	Driver() string
}

// Options configures the router.
type Options struct {
	Prefix       string
	MaxBodyBytes int64
	Credentials  identity.Credentials
	Scope        *identity.Scope
	Logger       *slog.Logger
	// Events, when set, is served at /_events for authenticated clients.
	Events http.Handler
}

// NewRouter creates a chi router serving the WebDAV tree of fs under
// opts.Prefix, plus unauthenticated health endpoints. With an empty prefix
// the root entries "_health" and "_events" are shadowed by those endpoints.
func NewRouter(fs vfs.Filesystem, store Pinger, opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dav := &webdav.Handler{
		Prefix:     opts.Prefix,
		FileSystem: davfs.New(fs, logger),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Warn("webdav request failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("error", err.Error()))
			}
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/_health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	r.Get("/_health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, errorBody(r, "store unavailable"))
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: store.Driver()})
	})

	r.Group(func(r chi.Router) {
		r.Use(BasicAuthMiddleware(opts.Credentials, opts.Scope))
		r.Use(CharsetMiddleware)
		r.Use(RootDeleteMiddleware(opts.Prefix))
		r.Use(DestinationGuardMiddleware(fs, opts.Prefix))
		r.Use(BufferBodyMiddleware(opts.MaxBodyBytes))

		if opts.Events != nil {
			r.Method(http.MethodGet, "/_events", opts.Events)
		}
		if opts.Prefix != "" {
			r.Handle(opts.Prefix, dav)
		}
		r.Handle(opts.Prefix+"/*", dav)
	})

	return r
}
