// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/notedav/internal/api"
	"github.com/starford/notedav/internal/mcpserver"
	"github.com/starford/notedav/internal/provision"
	"github.com/starford/notedav/internal/sse"
	"github.com/starford/notedav/internal/store"
	"github.com/starford/notedav/internal/vfs"
)

var errConfigRequired = errors.New("config is required")

// Run starts the WebDAV server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog := app.logger(os.Stdout)
	defer closeLog()
	slog.SetDefault(logger)

	if err := cfg.Auth.Require(); err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("webdav_prefix", cfg.WebDAV.Prefix),
		slog.String("login", cfg.Auth.Username),
		slog.String("tenant", cfg.Auth.Tenant()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	broker := sse.NewBroker(cfg.WebDAV.EventsKeepAlive)
	defer broker.Close()

	fs := vfs.New(st, vfs.WithLogger(logger), vfs.WithObserver(broker))
	router := api.NewRouter(fs, st, api.Options{
		Prefix:       cfg.WebDAV.Prefix,
		MaxBodyBytes: cfg.WebDAV.MaxBodyBytes,
		Credentials:  cfg.Auth.Credentials(),
		Scope:        cfg.Auth.Scope(),
		Logger:       logger,
		Events:       broker,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		// End event streams first; Shutdown waits for active handlers.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the filesystem of the configured login over MCP stdio.
// Logs go to stderr because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog := app.logger(os.Stderr)
	defer closeLog()
	slog.SetDefault(logger)

	tenant := cfg.Auth.Tenant()
	if tenant == "" {
		return errors.New("mcp: auth.username or auth.user_id must name the tenant to serve")
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := mcpserver.New(vfs.New(st, vfs.WithLogger(logger)), tenant, app.version)
	logger.Info("Starting MCP server", slog.String("tenant", tenant))
	return srv.ServeStdio()
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, closeLog := app.logger(os.Stderr)
	defer closeLog()

	if err := store.Migrate(ctx, app.config.Store.StoreSettings(logger)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// AddFolder creates the folder at path, and any missing parents, for tenant.
// An empty tenant means the tenant of the configured login.
func AddFolder(ctx context.Context, tenant, path string, opts ...Option) error {
	return withProvisioner(ctx, tenant, opts, func(p *provision.Provisioner, tenant string) error {
		_, _, err := p.AddFolder(ctx, tenant, path)
		return err
	})
}

// RemoveFolder deletes the folder at path and everything below it.
func RemoveFolder(ctx context.Context, tenant, path string, opts ...Option) error {
	return withProvisioner(ctx, tenant, opts, func(p *provision.Provisioner, tenant string) error {
		return p.RemoveFolder(ctx, tenant, path)
	})
}

func withProvisioner(ctx context.Context, tenant string, opts []Option, fn func(*provision.Provisioner, string) error) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, closeLog := app.logger(os.Stderr)
	defer closeLog()

	if tenant == "" {
		tenant = app.config.Auth.Tenant()
	}
	if tenant == "" {
		return errors.New("folder: --tenant is required when no login is configured")
	}

	st, err := openStore(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(provision.New(st, logger), tenant)
}

// logger builds the JSON logger. A configured log file takes precedence
// over out and is rotated by lumberjack.
func (a *application) logger(out io.Writer) (*slog.Logger, func()) {
	cfg := a.config.App
	closer := func() {}
	switch {
	case cfg.LogFile != "":
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = lj
		closer = func() { _ = lj.Close() }
	case a.logOutput != nil:
		out = a.logOutput
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})), closer
}

// openStore opens the configured backend, migrating first when asked to.
// Without auto_migrate a missing SQLite file is an error rather than an
// empty database.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*store.Store, error) {
	sc := cfg.Store.StoreSettings(logger)
	if cfg.Store.AutoMigrate {
		if err := store.Migrate(ctx, sc); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	} else if sc.Driver == store.DriverSQLite || sc.Driver == "" {
		if _, err := os.Stat(sc.Path); err != nil {
			return nil, fmt.Errorf("database %s: %w (run the migrate command or set store.auto_migrate)", sc.Path, err)
		}
	}

	st, err := store.Open(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return st, nil
}
