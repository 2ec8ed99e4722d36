package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notedav/internal/identity"
	"github.com/starford/notedav/internal/store"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Store  StoreConfig       `yaml:"store"`
	Auth   AuthConfig        `yaml:"auth"`
	WebDAV WebDAVConfig      `yaml:"webdav"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.WebDAV.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	LogFile  string     `yaml:"log_file"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// Validate validates the store configuration. An empty driver defaults to
// sqlite.
func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = store.DriverSQLite
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&c.Path, validation.When(c.Driver == store.DriverSQLite, validation.Required)),
		validation.Field(&c.DSN, validation.When(c.Driver == store.DriverPostgres, validation.Required)),
	)
}

// StoreSettings converts the configuration into store.Config.
func (c *StoreConfig) StoreSettings(logger *slog.Logger) store.Config {
	return store.Config{Driver: c.Driver, Path: c.Path, DSN: c.DSN, Logger: logger}
}

// AuthConfig holds the Basic auth login and tenant mapping.
//
// PasswordHash is a bcrypt hash and takes precedence over Password. UserID,
// when set, is the tenant of Username. Tenants maps further logins to
// tenants.
type AuthConfig struct {
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	PasswordHash string            `yaml:"password_hash"`
	UserID       string            `yaml:"user_id"`
	Tenants      map[string]string `yaml:"tenants"`
}

// Validate validates the auth configuration. It does not require
// credentials; see Require.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Username, validation.When(c.Password != "" || c.PasswordHash != "", validation.Required)),
	)
}

// Require reports an error when no usable credential pair is configured.
// Serving WebDAV requires one.
func (c *AuthConfig) Require() error {
	if err := c.Credentials().Check(); err != nil {
		return errors.New("auth: username and password (or password_hash) are required")
	}
	return nil
}

// Credentials returns the configured login.
func (c *AuthConfig) Credentials() identity.Credentials {
	return identity.Credentials{
		Username:     c.Username,
		Password:     c.Password,
		PasswordHash: c.PasswordHash,
	}
}

// Scope builds the login to tenant mapping.
func (c *AuthConfig) Scope() *identity.Scope {
	tenants := make(map[string]string, len(c.Tenants)+1)
	for login, tenant := range c.Tenants {
		tenants[login] = tenant
	}
	if c.UserID != "" && c.Username != "" {
		tenants[c.Username] = c.UserID
	}
	return identity.NewScope(tenants)
}

// Tenant returns the tenant of the configured login.
func (c *AuthConfig) Tenant() string {
	return c.Scope().Tenant(c.Username)
}

// WebDAVConfig tunes the WebDAV surface.
type WebDAVConfig struct {
	Prefix          string        `yaml:"prefix"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	EventsKeepAlive time.Duration `yaml:"events_keep_alive"`
}

// Validate validates the WebDAV configuration.
func (c *WebDAVConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Prefix, validation.By(func(any) error {
			if c.Prefix != "" && (c.Prefix[0] != '/' || c.Prefix[len(c.Prefix)-1] == '/') {
				return fmt.Errorf("must start with / and not end with /")
			}
			return nil
		})),
		validation.Field(&c.MaxBodyBytes, validation.Min(int64(0))),
		validation.Field(&c.EventsKeepAlive, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 4918,
			},
		},
		Store: StoreConfig{
			Driver: store.DriverSQLite,
			Path:   "./notes.db",
		},
		WebDAV: WebDAVConfig{
			MaxBodyBytes:    32 << 20,
			EventsKeepAlive: 30 * time.Second,
		},
	}
}
