// Package seatmanager implements the seat-bounded activation protocol:
// the single critical section in the system where concurrent requests
// against the same license must never be allowed to oversubscribe its
// seat limit. Grounded on handleActivate in
// Mike-Gemutly-ArmorClaw/license-server/main.go, which begins a
// transaction and locks the license row with SELECT ... FOR UPDATE before
// counting and inserting instances; generalized here to the domain
// package's richer License/Activation model and the SeatManager domain
// service in activations/domain/services.py.
package seatmanager

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/eventbus"
	"github.com/armorclaw/license-server/internal/metrics"
	"github.com/armorclaw/license-server/internal/store"
)

// Manager serializes seat activation/deactivation per license via a
// Postgres row lock, so two concurrent requests against the same license
// can never both observe the same pre-activation seat count.
type Manager struct {
	db          store.TxBeginner
	q           store.Querier
	licenses    store.LicenseRepo
	licenseKeys store.LicenseKeyRepo
	activation  store.ActivationRepo
	bus         eventbus.Bus
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewManager wires the seat manager. q is a non-transactional handle used
// for the best-effort brand lookups event stamping needs after a
// transaction has already committed. m may be nil, in which case no
// metrics are recorded.
func NewManager(db store.TxBeginner, q store.Querier, licenses store.LicenseRepo, licenseKeys store.LicenseKeyRepo, activations store.ActivationRepo, bus eventbus.Bus, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{db: db, q: q, licenses: licenses, licenseKeys: licenseKeys, activation: activations, bus: bus, metrics: m, logger: logger}
}

// brandIDFor resolves the owning brand for a license, for event stamping.
// Best-effort: a lookup failure yields uuid.Nil rather than failing the
// activation that already committed.
func (m *Manager) brandIDFor(ctx context.Context, licenseKeyID uuid.UUID) uuid.UUID {
	lk, err := m.licenseKeys.GetByID(ctx, licenseKeyID)
	if err != nil || lk == nil {
		return uuid.Nil
	}
	return lk.BrandID
}

// ActivateRequest is the seat manager's input for one activation attempt.
type ActivateRequest struct {
	LicenseID          uuid.UUID
	InstanceIdentifier string
	InstanceType       domain.InstanceType
	InstanceMetadata   map[string]any
}

// ActivateResult reports what happened: whether a seat row was created or
// reactivated, and the active seat count after the activation.
type ActivateResult struct {
	Activation *domain.Activation
	Outcome    domain.ActivationOutcome
	SeatsUsed  int
	SeatLimit  int
}

// Activate locks the license row, re-validates it under the lock, and
// either reactivates an existing (instance_identifier) row or inserts a
// new one — failing with ErrSeatLimitExceeded if doing so would exceed
// SeatLimit. Everything happens inside one transaction so the seat count
// observed and the row inserted are consistent even under heavy
// concurrency against the same license.
func (m *Manager) Activate(ctx context.Context, req ActivateRequest) (*ActivateResult, error) {
	if !domain.ValidInstanceType(req.InstanceType) {
		return nil, domain.ErrInvalidInstanceIdentifier
	}
	if req.InstanceIdentifier == "" || len(req.InstanceIdentifier) > domain.MaxInstanceIdentifierLen {
		return nil, domain.ErrInvalidInstanceIdentifier
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin activation tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	license, err := m.licenses.GetForUpdate(ctx, tx, req.LicenseID)
	if err != nil {
		return nil, fmt.Errorf("lock license: %w", err)
	}
	if license == nil {
		return nil, domain.ErrLicenseNotFound
	}
	if license.ExpireIfDue(now) {
		if err := m.licenses.Update(ctx, tx, license); err != nil {
			return nil, fmt.Errorf("persist expiry: %w", err)
		}
	}
	if !license.IsValid(now) {
		return nil, licenseStatusError(license.Status)
	}

	existing, err := m.activation.GetByLicenseAndInstance(ctx, tx, license.ID, req.InstanceIdentifier)
	if err != nil {
		return nil, fmt.Errorf("lookup existing activation: %w", err)
	}

	if existing != nil && existing.IsActive {
		return nil, domain.ErrDuplicateActive
	}

	activeCount, err := m.activation.CountActive(ctx, tx, license.ID)
	if err != nil {
		return nil, fmt.Errorf("count active seats: %w", err)
	}
	if activeCount >= license.SeatLimit {
		if m.metrics != nil {
			m.metrics.SeatLimitRejections.Inc()
		}
		return nil, domain.ErrSeatLimitExceeded
	}

	var outcome domain.ActivationOutcome
	var activation *domain.Activation
	if existing != nil {
		existing.Reactivate(now, req.InstanceMetadata)
		if err := m.activation.Update(ctx, tx, existing); err != nil {
			return nil, fmt.Errorf("reactivate: %w", err)
		}
		activation = existing
		outcome = domain.OutcomeReactivated
	} else {
		activation = &domain.Activation{
			ID:                 uuid.New(),
			LicenseID:          license.ID,
			InstanceIdentifier: req.InstanceIdentifier,
			InstanceType:       req.InstanceType,
			InstanceMetadata:   req.InstanceMetadata,
			ActivatedAt:        now,
			LastCheckedAt:      now,
			IsActive:           true,
		}
		if err := m.activation.Insert(ctx, tx, activation); err != nil {
			return nil, fmt.Errorf("insert activation: %w", err)
		}
		outcome = domain.OutcomeCreated
	}
	activeCount++

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activation: %w", err)
	}

	if m.metrics != nil {
		m.metrics.ActivationsTotal.WithLabelValues(string(outcome)).Inc()
	}

	if m.bus != nil {
		brandID := m.brandIDFor(ctx, license.LicenseKeyID)
		if err := m.bus.Publish(ctx, domain.NewEvent(domain.EventLicenseActivated, activation.ID, brandID, map[string]any{
			"license_id":     license.ID,
			"license_key_id": license.LicenseKeyID,
			"outcome":        string(outcome),
		})); err != nil {
			m.logger.Error("publish LicenseActivated failed", "error", err)
		}
	}

	return &ActivateResult{Activation: activation, Outcome: outcome, SeatsUsed: activeCount, SeatLimit: license.SeatLimit}, nil
}

// Deactivate frees the seat held by (licenseID, instanceIdentifier). A
// missing activation is ErrActivationNotFound; an already-inactive
// activation is a no-op success, matching Activation.Deactivate's own
// idempotence.
func (m *Manager) Deactivate(ctx context.Context, licenseID uuid.UUID, instanceIdentifier string) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin deactivation tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := m.licenses.GetForUpdate(ctx, tx, licenseID); err != nil {
		return fmt.Errorf("lock license: %w", err)
	}

	activation, err := m.activation.GetByLicenseAndInstance(ctx, tx, licenseID, instanceIdentifier)
	if err != nil {
		return fmt.Errorf("lookup activation: %w", err)
	}
	if activation == nil {
		return domain.ErrActivationNotFound
	}
	if !activation.IsActive {
		return nil
	}

	activation.Deactivate(time.Now().UTC())
	if err := m.activation.Update(ctx, tx, activation); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deactivation: %w", err)
	}

	if m.bus != nil {
		brandID := uuid.Nil
		payload := map[string]any{"license_id": licenseID}
		if license, err := m.licenses.GetByID(ctx, m.q, licenseID); err == nil && license != nil {
			brandID = m.brandIDFor(ctx, license.LicenseKeyID)
			payload["license_key_id"] = license.LicenseKeyID
		}
		if err := m.bus.Publish(ctx, domain.NewEvent(domain.EventSeatDeactivated, activation.ID, brandID, payload)); err != nil {
			m.logger.Error("publish SeatDeactivated failed", "error", err)
		}
	}
	return nil
}

func licenseStatusError(s domain.Status) error {
	switch s {
	case domain.StatusExpired:
		return domain.ErrLicenseExpired
	case domain.StatusSuspended:
		return domain.ErrLicenseSuspended
	case domain.StatusCancelled:
		return domain.ErrLicenseCancelled
	default:
		return domain.ErrInvalidLicenseStatus
	}
}
