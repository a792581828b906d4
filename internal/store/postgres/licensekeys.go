package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/store"
)

// LicenseKeyRepo implements store.LicenseKeyRepo.
type LicenseKeyRepo struct{ db *DB }

func NewLicenseKeyRepo(db *DB) *LicenseKeyRepo { return &LicenseKeyRepo{db: db} }

func (r *LicenseKeyRepo) Create(ctx context.Context, q store.Querier, lk *domain.LicenseKey) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO license_keys (id, brand_id, key, key_hash, customer_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, lk.ID, lk.BrandID, lk.Key, lk.KeyHash, lk.CustomerEmail, lk.CreatedAt, lk.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert license key: %w", err)
	}
	return nil
}

func (r *LicenseKeyRepo) GetByHash(ctx context.Context, hash string) (*domain.LicenseKey, error) {
	var lk domain.LicenseKey
	err := r.db.QueryRowContext(ctx, `
		SELECT id, brand_id, key, key_hash, customer_email, created_at, updated_at
		FROM license_keys WHERE key_hash = $1
	`, hash).Scan(&lk.ID, &lk.BrandID, &lk.Key, &lk.KeyHash, &lk.CustomerEmail, &lk.CreatedAt, &lk.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrInvalidLicenseKey
	}
	if err != nil {
		return nil, fmt.Errorf("query license key: %w", err)
	}
	return &lk, nil
}

func (r *LicenseKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LicenseKey, error) {
	var lk domain.LicenseKey
	err := r.db.QueryRowContext(ctx, `
		SELECT id, brand_id, key, key_hash, customer_email, created_at, updated_at
		FROM license_keys WHERE id = $1
	`, id).Scan(&lk.ID, &lk.BrandID, &lk.Key, &lk.KeyHash, &lk.CustomerEmail, &lk.CreatedAt, &lk.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query license key: %w", err)
	}
	return &lk, nil
}

// ListByBrandAndEmail intentionally includes keys whose licenses have all
// been cancelled, so ListByEmail still surfaces the history of a customer's
// past entitlements.
func (r *LicenseKeyRepo) ListByBrandAndEmail(ctx context.Context, brandID uuid.UUID, email string) ([]*domain.LicenseKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, brand_id, key, key_hash, customer_email, created_at, updated_at
		FROM license_keys WHERE brand_id = $1 AND customer_email = $2
		ORDER BY created_at DESC
	`, brandID, email)
	if err != nil {
		return nil, fmt.Errorf("query license keys: %w", err)
	}
	defer rows.Close()

	var out []*domain.LicenseKey
	for rows.Next() {
		lk := &domain.LicenseKey{}
		if err := rows.Scan(&lk.ID, &lk.BrandID, &lk.Key, &lk.KeyHash, &lk.CustomerEmail, &lk.CreatedAt, &lk.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, lk)
	}
	return out, rows.Err()
}
