package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notedav/internal"
	pkgconfig "github.com/starford/notedav/pkg/config"
)

var version = "dev"

// loadConfig reads the config file (optional) and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("database") {
		cfg.Store.Path = cmd.String("database")
	}
	if cmd.IsSet("host") {
		cfg.App.HTTP.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("username") {
		cfg.Auth.Username = cmd.String("username")
	}
	if cmd.IsSet("password") {
		cfg.Auth.Password = cmd.String("password")
	}
	if cmd.IsSet("user-id") {
		cfg.Auth.UserID = cmd.String("user-id")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Migrate(ctx, opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func folderAction(fn func(context.Context, string, string, ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one folder path, got %d", cmd.Args().Len())
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tenant := cmd.String("tenant")
		if tenant == "" {
			tenant = cfg.Auth.Tenant()
		}
		if tenant == "" {
			return fmt.Errorf("no tenant: pass --tenant or configure a login")
		}
		return fn(ctx, tenant, cmd.Args().First(),
			internal.WithConfig(cfg), internal.WithVersion(version))
	}
}

func main() {
	tenantFlag := &cli.StringFlag{
		Name:  "tenant",
		Usage: "Tenant (user id) that owns the folder; defaults to the configured login's tenant",
	}

	cmd := &cli.Command{
		Name:    "notedav",
		Usage:   "Serve a relational notes store as a WebDAV filesystem",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Usage:   "SQLite database file",
				Sources: cli.EnvVars("NOTEDAV_DATABASE"),
			},
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"H"},
				Usage:   "Listen host",
				Sources: cli.EnvVars("NOTEDAV_HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
				Sources: cli.EnvVars("NOTEDAV_PORT"),
			},
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Basic auth username",
				Sources: cli.EnvVars("NOTEDAV_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"P"},
				Usage:   "Basic auth password",
				Sources: cli.EnvVars("NOTEDAV_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "user-id",
				Usage:   "Tenant of the configured login",
				Sources: cli.EnvVars("NOTEDAV_USER_ID"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the WebDAV server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the notes tree as MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:  "folder",
				Usage: "Manage folders (folders cannot be created over WebDAV)",
				Commands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Create a folder and any missing parents",
						ArgsUsage: "<path>",
						Flags:     []cli.Flag{tenantFlag},
						Action:    folderAction(internal.AddFolder),
					},
					{
						Name:      "remove",
						Usage:     "Delete a folder with everything below it",
						ArgsUsage: "<path>",
						Flags:     []cli.Flag{tenantFlag},
						Action:    folderAction(internal.RemoveFolder),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
