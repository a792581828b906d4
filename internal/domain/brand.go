package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Brand is a tenant. Name is mutable; Slug and Prefix are immutable once
// created and enforce the tenant isolation boundary for every API key and
// license key issued under it.
type Brand struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Prefix    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,99}$`)
var prefixPattern = regexp.MustCompile(`^[A-Z0-9_-]{2,10}$`)

// ValidateSlug reports whether s is a URL-safe, 1..100 char brand slug.
func ValidateSlug(s string) bool {
	return len(s) >= 1 && len(s) <= 100 && slugPattern.MatchString(s)
}

// NormalizePrefix upper-cases and validates a brand prefix (2..10 chars,
// alphanumeric plus "-"/"_").
func NormalizePrefix(p string) (string, bool) {
	p = strings.ToUpper(strings.TrimSpace(p))
	if !prefixPattern.MatchString(p) {
		return "", false
	}
	return p, true
}

// Product is a licensable good owned by a Brand; its lifetime is bound to
// the brand via ON DELETE CASCADE.
type Product struct {
	ID        uuid.UUID
	BrandID   uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
}

// APIKeyScope restricts what a brand-scoped API key may do.
type APIKeyScope string

const (
	ScopeFull APIKeyScope = "full"
	ScopeRead APIKeyScope = "read"
)

// APIKey authenticates brand-scoped (/brand/*) requests. The raw key is
// never stored; KeyHash is the SHA-256 hex digest used for lookup, and
// KeyPrefix is the first 8 characters kept in plaintext for display.
type APIKey struct {
	ID         uuid.UUID
	BrandID    uuid.UUID
	KeyPrefix  string
	KeyHash    string
	Scope      APIKeyScope
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the key has a set expiry that has passed.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// CanWrite reports whether the key's scope permits mutating operations.
func (k *APIKey) CanWrite() bool {
	return k.Scope == ScopeFull
}
