package domain

import (
	"time"

	"github.com/google/uuid"
)

// InstanceType classifies where a product instance is deployed.
type InstanceType string

const (
	InstanceURL        InstanceType = "url"
	InstanceHostname    InstanceType = "hostname"
	InstanceMachineID   InstanceType = "machine_id"
)

// ValidInstanceType reports whether t is one of the three recognized
// instance types.
func ValidInstanceType(t InstanceType) bool {
	switch t {
	case InstanceURL, InstanceHostname, InstanceMachineID:
		return true
	default:
		return false
	}
}

// Activation records that a License is in use on a specific instance,
// consuming one seat while IsActive is true.
type Activation struct {
	ID                 uuid.UUID
	LicenseID          uuid.UUID
	InstanceIdentifier string
	InstanceType       InstanceType
	InstanceMetadata   map[string]any
	ActivatedAt        time.Time
	LastCheckedAt      time.Time
	DeactivatedAt      *time.Time
	IsActive           bool
}

// MaxInstanceIdentifierLen is the hard cap on instance_identifier length.
const MaxInstanceIdentifierLen = 500

// ActivationOutcome distinguishes a brand-new activation from the
// reactivation of a previously-deactivated row; both consume a seat.
type ActivationOutcome string

const (
	OutcomeCreated     ActivationOutcome = "CREATED"
	OutcomeReactivated ActivationOutcome = "REACTIVATED"
)

// Reactivate flips a deactivated row back to active, consuming a seat.
// Overwrites ActivatedAt rather than preserving the original activation time.
func (a *Activation) Reactivate(now time.Time, metadata map[string]any) {
	a.IsActive = true
	a.ActivatedAt = now
	a.LastCheckedAt = now
	a.DeactivatedAt = nil
	if metadata != nil {
		a.InstanceMetadata = metadata
	}
}

// Deactivate frees the seat. Deactivating an already-inactive row is a
// no-op success — callers should not call this twice expecting distinct
// timestamps.
func (a *Activation) Deactivate(now time.Time) {
	if !a.IsActive {
		return
	}
	a.IsActive = false
	a.DeactivatedAt = &now
}
