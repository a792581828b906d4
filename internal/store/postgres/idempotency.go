package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
)

// IdempotencyRepo implements store.IdempotencyRepo.
type IdempotencyRepo struct{ db *DB }

func NewIdempotencyRepo(db *DB) *IdempotencyRepo { return &IdempotencyRepo{db: db} }

func (r *IdempotencyRepo) Get(ctx context.Context, brandID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT key, brand_id, response_data, status_code, created_at, expires_at
		FROM idempotency_keys WHERE brand_id = $1 AND key = $2
	`, brandID, key).Scan(&rec.Key, &rec.BrandID, &rec.ResponseData, &rec.StatusCode, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query idempotency key: %w", err)
	}
	return &rec, nil
}

func (r *IdempotencyRepo) Save(ctx context.Context, rec *domain.IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, brand_id, response_data, status_code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (brand_id, key) DO NOTHING
	`, rec.Key, rec.BrandID, rec.ResponseData, rec.StatusCode, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}
