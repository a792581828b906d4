package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Status is the license lifecycle state. Transitions are restricted to the
// table in renew/suspend/resume/cancel/ExpireIfDue below.
type Status string

const (
	StatusValid     Status = "valid"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// LicenseKey is the customer-facing credential aggregating one or more
// Licenses. Key is globally unique and printable; KeyHash is its SHA-256
// hex digest, indexed for O(1) lookup.
type LicenseKey struct {
	ID            uuid.UUID
	BrandID       uuid.UUID
	Key           string
	KeyHash       string
	CustomerEmail string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// License is an entitlement to use a specific Product under a LicenseKey,
// bounded by SeatLimit and an optional ExpiresAt.
type License struct {
	ID           uuid.UUID
	LicenseKeyID uuid.UUID
	ProductID    uuid.UUID
	Status       Status
	SeatLimit    int
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsValid reports whether the license can be used to activate a seat:
// status must be valid and, if set, ExpiresAt must be strictly after now.
// expires_at == now counts as expired .
func (l *License) IsValid(now time.Time) bool {
	if l.Status != StatusValid {
		return false
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Renew moves the license to valid with a new expiration. Allowed from
// valid, suspended, and expired; newExpiresAt must be strictly in the
// future.
func (l *License) Renew(newExpiresAt time.Time, now time.Time) error {
	if l.Status == StatusCancelled {
		return ErrInvalidLicenseStatus
	}
	if !newExpiresAt.After(now) {
		return ErrInvalidExpiration
	}
	l.Status = StatusValid
	l.ExpiresAt = &newExpiresAt
	l.UpdatedAt = now
	return nil
}

// Suspend moves a valid license to suspended. Any other source status
// fails with INVALID_LICENSE_STATUS.
func (l *License) Suspend(now time.Time) error {
	if l.Status != StatusValid {
		return ErrInvalidLicenseStatus
	}
	l.Status = StatusSuspended
	l.UpdatedAt = now
	return nil
}

// Resume moves a suspended license back to valid. Any other source status
// fails.
func (l *License) Resume(now time.Time) error {
	if l.Status != StatusSuspended {
		return ErrInvalidLicenseStatus
	}
	l.Status = StatusValid
	l.UpdatedAt = now
	return nil
}

// Cancel is terminal from valid, suspended, or expired; never reversible
// once cancelled.
func (l *License) Cancel(now time.Time) error {
	if l.Status != StatusValid && l.Status != StatusSuspended && l.Status != StatusExpired {
		return ErrInvalidLicenseStatus
	}
	l.Status = StatusCancelled
	l.UpdatedAt = now
	return nil
}

// ExpireIfDue moves valid -> expired iff ExpiresAt has passed. Suspended
// and cancelled licenses are left untouched. Returns true if the license
// was mutated.
func (l *License) ExpireIfDue(now time.Time) bool {
	if l.Status != StatusValid || l.ExpiresAt == nil || l.ExpiresAt.After(now) {
		return false
	}
	l.Status = StatusExpired
	l.UpdatedAt = now
	return true
}

var licenseKeyPattern = regexp.MustCompile(`^[A-Z0-9_-]{2,10}(-[A-Z0-9]{4}){4}$`)

// ValidLicenseKeyFormat checks the license key wire format, independent of
// which brand issued the key.
func ValidLicenseKeyFormat(key string) bool {
	return licenseKeyPattern.MatchString(key)
}
