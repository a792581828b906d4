package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
)

// ProductRepo implements store.ProductRepo.
type ProductRepo struct{ db *DB }

func NewProductRepo(db *DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, brand_id, name, slug, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.BrandID, p.Name, p.Slug, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, brand_id, name, slug, created_at FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) GetBySlug(ctx context.Context, brandID uuid.UUID, slug string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, brand_id, name, slug, created_at FROM products WHERE brand_id = $1 AND slug = $2
	`, brandID, slug).Scan(&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product by slug: %w", err)
	}
	return &p, nil
}

// ListByIDs batches a product lookup for N+1-prone callers like
// ListByEmail, .
func (r *ProductRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	out := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, brand_id, name, slug, created_at FROM products WHERE id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *ProductRepo) BelongsToBrand(ctx context.Context, productID, brandID uuid.UUID) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE id = $1 AND brand_id = $2
	`, productID, brandID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query product ownership: %w", err)
	}
	return count > 0, nil
}
