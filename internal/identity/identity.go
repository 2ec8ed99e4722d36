// Package identity maps authenticated logins to tenant identifiers and
// carries the tenant through request contexts.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"maps"

	"golang.org/x/crypto/bcrypt"
)

// Scope resolves a verified login to the tenant every query is filtered by.
// It is immutable once built.
type Scope struct {
	tenants map[string]string
}

// NewScope builds a Scope from a login to tenant mapping. The map is copied.
func NewScope(tenants map[string]string) *Scope {
	return &Scope{tenants: maps.Clone(tenants)}
}

// Tenant returns the tenant for login. Without a mapping the login itself is
// the tenant.
func (s *Scope) Tenant(login string) string {
	if s != nil {
		if t, ok := s.tenants[login]; ok && t != "" {
			return t
		}
	}
	return login
}

type tenantKey struct{}

// WithTenant returns a copy of ctx carrying tenant.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext returns the tenant stored by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tenantKey{}).(string)
	return t, ok && t != ""
}

// ErrNoCredentials is returned by Credentials.Check when no login is configured.
var ErrNoCredentials = errors.New("identity: no credentials configured")

// Credentials is the single login accepted by the server. PasswordHash, when
// set, is a bcrypt hash and takes precedence over Password.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// Check reports an error if no usable credential pair is configured.
func (c Credentials) Check() error {
	if c.Username == "" || (c.Password == "" && c.PasswordHash == "") {
		return ErrNoCredentials
	}
	return nil
}

// Verify reports whether username and password match. Both comparisons run
// regardless of the outcome of the first.
func (c Credentials) Verify(username, password string) bool {
	if c.Check() != nil {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1

	var passOK bool
	if c.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}
	return userOK && passOK
}
