package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
)

// BrandRepo implements store.BrandRepo.
type BrandRepo struct{ db *DB }

func NewBrandRepo(db *DB) *BrandRepo { return &BrandRepo{db: db} }

func (r *BrandRepo) Create(ctx context.Context, b *domain.Brand) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO brands (id, name, slug, prefix, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.Name, b.Slug, b.Prefix, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

func (r *BrandRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	var b domain.Brand
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, prefix, created_at, updated_at FROM brands WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Slug, &b.Prefix, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query brand: %w", err)
	}
	return &b, nil
}

func (r *BrandRepo) GetBySlug(ctx context.Context, slug string) (*domain.Brand, error) {
	var b domain.Brand
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, prefix, created_at, updated_at FROM brands WHERE slug = $1
	`, slug).Scan(&b.ID, &b.Name, &b.Slug, &b.Prefix, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBrandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query brand: %w", err)
	}
	return &b, nil
}
