// Package store defines the abstract repository ports the service layer
// depends on. The Postgres implementation lives in store/postgres; the
// service layer and seat manager are constructed against these interfaces
// so a fake, in-memory implementation can stand in for concurrency tests
// (see internal/seatmanager's tests).
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run either standalone or inside the seat manager's critical
// section without duplicating SQL.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TxBeginner starts a transaction; implemented by the Postgres DB handle.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

// Tx is a Querier plus commit/rollback, matching *sql.Tx's shape.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

type BrandRepo interface {
	Create(ctx context.Context, b *domain.Brand) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Brand, error)
}

type ProductRepo interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetBySlug(ctx context.Context, brandID uuid.UUID, slug string) (*domain.Product, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	BelongsToBrand(ctx context.Context, productID, brandID uuid.UUID) (bool, error)
}

type APIKeyRepo interface {
	Create(ctx context.Context, k *domain.APIKey) error
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time)
}

type LicenseKeyRepo interface {
	Create(ctx context.Context, q Querier, lk *domain.LicenseKey) error
	GetByHash(ctx context.Context, hash string) (*domain.LicenseKey, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LicenseKey, error)
	ListByBrandAndEmail(ctx context.Context, brandID uuid.UUID, email string) ([]*domain.LicenseKey, error)
}

type LicenseRepo interface {
	Create(ctx context.Context, q Querier, l *domain.License) error
	GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.License, error)
	GetForUpdate(ctx context.Context, tx Tx, id uuid.UUID) (*domain.License, error)
	Update(ctx context.Context, q Querier, l *domain.License) error
	ListByLicenseKeyID(ctx context.Context, q Querier, licenseKeyID uuid.UUID) ([]*domain.License, error)
	SweepExpired(ctx context.Context, now time.Time) ([]*domain.License, error)
}

type ActivationRepo interface {
	GetByLicenseAndInstance(ctx context.Context, q Querier, licenseID uuid.UUID, instanceIdentifier string) (*domain.Activation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Activation, error)
	CountActive(ctx context.Context, q Querier, licenseID uuid.UUID) (int, error)
	Insert(ctx context.Context, q Querier, a *domain.Activation) error
	Update(ctx context.Context, q Querier, a *domain.Activation) error
}

type WebhookRepo interface {
	ListActiveForBrand(ctx context.Context, brandID uuid.UUID) ([]*domain.WebhookConfig, error)
}

type AuditRepo interface {
	Insert(ctx context.Context, a *domain.AuditLog) error
}

type IdempotencyRepo interface {
	Get(ctx context.Context, brandID uuid.UUID, key string) (*domain.IdempotencyRecord, error)
	Save(ctx context.Context, rec *domain.IdempotencyRecord) error
}
