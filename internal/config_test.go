package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if got := cfg.App.HTTP.Address(); got != "127.0.0.1:4918" {
		t.Errorf("Address = %q", got)
	}
}

func TestStoreConfig_EmptyDriverDefaultsSQLite(t *testing.T) {
	cfg := StoreConfig{Path: "notes.db"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty driver should default to sqlite: %v", err)
	}
	if cfg.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Driver)
	}
}

func TestStoreConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  StoreConfig
	}{
		{"unknown driver", StoreConfig{Driver: "oracle", Path: "x"}},
		{"sqlite without path", StoreConfig{Driver: "sqlite"}},
		{"postgres without dsn", StoreConfig{Driver: "postgres"}},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestAuthConfig_PasswordWithoutUsername(t *testing.T) {
	cfg := AuthConfig{Password: "secret"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("password without username should fail validation")
	}
}

func TestAuthConfig_Require(t *testing.T) {
	cfg := AuthConfig{}
	err := cfg.Require()
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Errorf("Require on empty auth = %v", err)
	}
	cfg = AuthConfig{Username: "testuser", PasswordHash: "$2a$10$abcdefghijklmnopqrstuv"}
	if err := cfg.Require(); err != nil {
		t.Errorf("Require with hash = %v", err)
	}
}

func TestAuthConfig_TenantOverride(t *testing.T) {
	cfg := AuthConfig{
		Username: "alice",
		Password: "pw",
		UserID:   "tenant-a",
		Tenants:  map[string]string{"bob": "tenant-b", "alice": "ignored"},
	}
	if got := cfg.Tenant(); got != "tenant-a" {
		t.Errorf("Tenant = %q, want tenant-a", got)
	}
	scope := cfg.Scope()
	if got := scope.Tenant("bob"); got != "tenant-b" {
		t.Errorf("bob tenant = %q", got)
	}
	if got := scope.Tenant("carol"); got != "carol" {
		t.Errorf("unmapped tenant = %q", got)
	}
}

func TestWebDAVConfig_Prefix(t *testing.T) {
	for _, p := range []string{"", "/dav", "/a/b"} {
		cfg := WebDAVConfig{Prefix: p}
		if err := cfg.Validate(); err != nil {
			t.Errorf("prefix %q: %v", p, err)
		}
	}
	for _, p := range []string{"dav", "/dav/"} {
		cfg := WebDAVConfig{Prefix: p}
		if err := cfg.Validate(); err == nil {
			t.Errorf("prefix %q should fail", p)
		}
	}
}

func TestWebDAVConfig_NegativeKeepAlive(t *testing.T) {
	cfg := WebDAVConfig{EventsKeepAlive: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("negative keep-alive should fail")
	}
}

func TestFullConfig_StoreValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch store error")
	}
}

func TestOpenStoreRequiresExistingFile(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "missing.db")
	err := AddFolder(context.Background(), "alice", "/Docs", WithConfig(cfg), WithLogOutput(os.Stderr))
	if err == nil || !strings.Contains(err.Error(), "missing.db") {
		t.Fatalf("err = %v, want missing database error", err)
	}
	if _, statErr := os.Stat(cfg.Store.Path); !os.IsNotExist(statErr) {
		t.Error("database file was created without auto_migrate")
	}
}

func TestFolderCommandsWithAutoMigrate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "notes.db")
	cfg.Store.AutoMigrate = true
	ctx := context.Background()

	if err := AddFolder(ctx, "alice", "/Docs/Work", WithConfig(cfg)); err != nil {
		t.Fatalf("AddFolder: %v", err)
	}
	if err := RemoveFolder(ctx, "alice", "/Docs", WithConfig(cfg)); err != nil {
		t.Fatalf("RemoveFolder: %v", err)
	}
	if err := RemoveFolder(ctx, "alice", "/Docs", WithConfig(cfg)); err == nil {
		t.Error("removing a missing folder should fail")
	}
	if err := AddFolder(ctx, "", "/Docs", WithConfig(cfg)); err == nil {
		t.Error("AddFolder without tenant or login should fail")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestRunRequiresCredentials(t *testing.T) {
	cfg := NewDefaultConfig()
	err := Run(context.Background(), WithConfig(cfg), WithLogOutput(os.Stderr))
	if err == nil || !strings.Contains(err.Error(), "auth") {
		t.Fatalf("Run without credentials = %v", err)
	}
}
