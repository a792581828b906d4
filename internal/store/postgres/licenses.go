package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/store"
)

// LicenseRepo implements store.LicenseRepo.
type LicenseRepo struct{ db *DB }

func NewLicenseRepo(db *DB) *LicenseRepo { return &LicenseRepo{db: db} }

func scanLicense(row interface{ Scan(...any) error }) (*domain.License, error) {
	var l domain.License
	var status string
	if err := row.Scan(&l.ID, &l.LicenseKeyID, &l.ProductID, &status, &l.SeatLimit, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Status = domain.Status(status)
	return &l, nil
}

const licenseColumns = `id, license_key_id, product_id, status, seat_limit, expires_at, created_at, updated_at`

func (r *LicenseRepo) Create(ctx context.Context, q store.Querier, l *domain.License) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO licenses (id, license_key_id, product_id, status, seat_limit, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.LicenseKeyID, l.ProductID, string(l.Status), l.SeatLimit, l.ExpiresAt, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (r *LicenseRepo) GetByID(ctx context.Context, q store.Querier, id uuid.UUID) (*domain.License, error) {
	row := q.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id)
	l, err := scanLicense(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query license: %w", err)
	}
	return l, nil
}

// GetForUpdate locks the license row inside tx so the seat manager's
// critical section can safely re-read, evaluate validity, count active
// seats, and write — all against a consistent snapshot no concurrent
// activator can see. Mirrors handleActivate's "SELECT ... FOR UPDATE"
// transaction.
func (r *LicenseRepo) GetForUpdate(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.License, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = $1 FOR UPDATE`, id)
	l, err := scanLicense(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query license for update: %w", err)
	}
	return l, nil
}

func (r *LicenseRepo) Update(ctx context.Context, q store.Querier, l *domain.License) error {
	_, err := q.ExecContext(ctx, `
		UPDATE licenses SET status = $1, expires_at = $2, updated_at = $3 WHERE id = $4
	`, string(l.Status), l.ExpiresAt, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	return nil
}

func (r *LicenseRepo) ListByLicenseKeyID(ctx context.Context, q store.Querier, licenseKeyID uuid.UUID) ([]*domain.License, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE license_key_id = $1`, licenseKeyID)
	if err != nil {
		return nil, fmt.Errorf("query licenses: %w", err)
	}
	defer rows.Close()

	var out []*domain.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SweepExpired implements the periodic expirer's conditional update: only
// valid licenses whose expiry has passed flip to expired, and the UPDATE's
// WHERE clause makes concurrent sweeps safe.
func (r *LicenseRepo) SweepExpired(ctx context.Context, now time.Time) ([]*domain.License, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE licenses SET status = 'expired', updated_at = $1
		WHERE status = 'valid' AND expires_at IS NOT NULL AND expires_at < $1
		RETURNING `+licenseColumns, now)
	if err != nil {
		return nil, fmt.Errorf("sweep expired licenses: %w", err)
	}
	defer rows.Close()

	var out []*domain.License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
