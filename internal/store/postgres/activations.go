package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/store"
)

// ActivationRepo implements store.ActivationRepo.
type ActivationRepo struct{ db *DB }

func NewActivationRepo(db *DB) *ActivationRepo { return &ActivationRepo{db: db} }

const activationColumns = `id, license_id, instance_identifier, instance_type, instance_metadata, activated_at, last_checked_at, deactivated_at, is_active`

func scanActivation(row interface{ Scan(...any) error }) (*domain.Activation, error) {
	var a domain.Activation
	var instanceType string
	var metaJSON []byte
	if err := row.Scan(&a.ID, &a.LicenseID, &a.InstanceIdentifier, &instanceType, &metaJSON,
		&a.ActivatedAt, &a.LastCheckedAt, &a.DeactivatedAt, &a.IsActive); err != nil {
		return nil, err
	}
	a.InstanceType = domain.InstanceType(instanceType)
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &a.InstanceMetadata)
	}
	return &a, nil
}

func (r *ActivationRepo) GetByLicenseAndInstance(ctx context.Context, q store.Querier, licenseID uuid.UUID, instanceIdentifier string) (*domain.Activation, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+activationColumns+` FROM activations WHERE license_id = $1 AND instance_identifier = $2
	`, licenseID, instanceIdentifier)
	a, err := scanActivation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query activation: %w", err)
	}
	return a, nil
}

func (r *ActivationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activationColumns+` FROM activations WHERE id = $1`, id)
	a, err := scanActivation(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrActivationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query activation: %w", err)
	}
	return a, nil
}

// CountActive counts active seats for a license within q's scope. The seat
// manager calls it inside its transaction after locking the license row
// with GetForUpdate; the status and listing reads call it without a lock.
func (r *ActivationRepo) CountActive(ctx context.Context, q store.Querier, licenseID uuid.UUID) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM activations WHERE license_id = $1 AND is_active = true
	`, licenseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active activations: %w", err)
	}
	return count, nil
}

func (r *ActivationRepo) Insert(ctx context.Context, q store.Querier, a *domain.Activation) error {
	metaJSON, err := json.Marshal(a.InstanceMetadata)
	if err != nil {
		return fmt.Errorf("marshal instance metadata: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO activations (id, license_id, instance_identifier, instance_type, instance_metadata, activated_at, last_checked_at, deactivated_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.LicenseID, a.InstanceIdentifier, string(a.InstanceType), metaJSON, a.ActivatedAt, a.LastCheckedAt, a.DeactivatedAt, a.IsActive)
	if err != nil {
		return fmt.Errorf("insert activation: %w", err)
	}
	return nil
}

func (r *ActivationRepo) Update(ctx context.Context, q store.Querier, a *domain.Activation) error {
	metaJSON, err := json.Marshal(a.InstanceMetadata)
	if err != nil {
		return fmt.Errorf("marshal instance metadata: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		UPDATE activations SET instance_metadata = $1, activated_at = $2, last_checked_at = $3,
			deactivated_at = $4, is_active = $5
		WHERE id = $6
	`, metaJSON, a.ActivatedAt, a.LastCheckedAt, a.DeactivatedAt, a.IsActive, a.ID)
	if err != nil {
		return fmt.Errorf("update activation: %w", err)
	}
	return nil
}
