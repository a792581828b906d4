package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
)

// APIKeyRepo implements store.APIKeyRepo.
type APIKeyRepo struct{ db *DB }

func NewAPIKeyRepo(db *DB) *APIKeyRepo { return &APIKeyRepo{db: db} }

func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, brand_id, key_prefix, key_hash, scope, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, k.ID, k.BrandID, k.KeyPrefix, k.KeyHash, string(k.Scope), k.ExpiresAt, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (r *APIKeyRepo) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	var k domain.APIKey
	var scope string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, brand_id, key_prefix, key_hash, scope, expires_at, last_used_at, created_at
		FROM api_keys WHERE key_hash = $1
	`, hash).Scan(&k.ID, &k.BrandID, &k.KeyPrefix, &k.KeyHash, &scope, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrInvalidAPIKey
	}
	if err != nil {
		return nil, fmt.Errorf("query api key: %w", err)
	}
	k.Scope = domain.APIKeyScope(scope)
	return &k, nil
}

// TouchLastUsed is best-effort: a failure here must never fail the
// request it authenticated, .
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) {
	_, _ = r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, at, id)
}
