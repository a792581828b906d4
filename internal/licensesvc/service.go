// Package licensesvc implements the brand-facing command/query handlers:
// provision, renew, suspend, resume, cancel, get-status, and list-by-email.
// Generalized from handleAdminCreate/handleAdminRevoke and the
// status-lookup handlers in Mike-Gemutly-ArmorClaw/license-server/main.go
// into a multi-license, multi-product model.
package licensesvc

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/cache"
	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/eventbus"
	"github.com/armorclaw/license-server/internal/keygen"
	"github.com/armorclaw/license-server/internal/store"
)

// Service implements the brand-scoped command/query surface.
type Service struct {
	db          store.TxBeginner
	q           store.Querier
	brands      store.BrandRepo
	products    store.ProductRepo
	licenseKeys store.LicenseKeyRepo
	licenses    store.LicenseRepo
	activations store.ActivationRepo
	cache       *cache.Client
	bus         eventbus.Bus
	logger      *slog.Logger
}

func New(
	db store.TxBeginner,
	q store.Querier,
	brands store.BrandRepo,
	products store.ProductRepo,
	licenseKeys store.LicenseKeyRepo,
	licenses store.LicenseRepo,
	activations store.ActivationRepo,
	cacheClient *cache.Client,
	bus eventbus.Bus,
	logger *slog.Logger,
) *Service {
	return &Service{
		db: db, q: q,
		brands: brands, products: products,
		licenseKeys: licenseKeys, licenses: licenses, activations: activations,
		cache: cacheClient, bus: bus, logger: logger,
	}
}

// ProvisionInput is the brand's request to issue a new license key.
type ProvisionInput struct {
	BrandID       uuid.UUID
	CustomerEmail string
	ProductIDs    []uuid.UUID
	ExpiresAt     *time.Time
	MaxSeats      int
}

// ProvisionResult is what the caller gets back.
type ProvisionResult struct {
	LicenseKey *domain.LicenseKey
	Licenses   []*domain.License
}

// Provision issues one LicenseKey and one License per requested product, all
// in a single transaction: either every row is written, or none are.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	if len(in.ProductIDs) == 0 {
		return nil, domain.ValidationError("product_ids: at least one product is required")
	}
	maxSeats := in.MaxSeats
	if maxSeats <= 0 {
		maxSeats = 1
	}

	brand, err := s.brands.GetByID(ctx, in.BrandID)
	if err != nil {
		return nil, fmt.Errorf("load brand: %w", err)
	}
	if brand == nil {
		return nil, domain.ErrBrandNotFound
	}

	for _, pid := range in.ProductIDs {
		owned, err := s.products.BelongsToBrand(ctx, pid, in.BrandID)
		if err != nil {
			return nil, fmt.Errorf("check product ownership: %w", err)
		}
		if !owned {
			return nil, domain.ValidationError(fmt.Sprintf("product_ids: product %s is not owned by this brand", pid))
		}
	}

	rawKey, err := keygen.LicenseKey(brand.Prefix)
	if err != nil {
		return nil, fmt.Errorf("generate license key: %w", err)
	}

	now := time.Now().UTC()
	lk := &domain.LicenseKey{
		ID:            uuid.New(),
		BrandID:       in.BrandID,
		Key:           rawKey,
		KeyHash:       keygen.HashKey(rawKey),
		CustomerEmail: in.CustomerEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin provision tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.licenseKeys.Create(ctx, tx, lk); err != nil {
		return nil, fmt.Errorf("insert license key: %w", err)
	}

	licenses := make([]*domain.License, 0, len(in.ProductIDs))
	for _, pid := range in.ProductIDs {
		l := &domain.License{
			ID:           uuid.New(),
			LicenseKeyID: lk.ID,
			ProductID:    pid,
			Status:       domain.StatusValid,
			SeatLimit:    maxSeats,
			ExpiresAt:    in.ExpiresAt,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.licenses.Create(ctx, tx, l); err != nil {
			return nil, fmt.Errorf("insert license: %w", err)
		}
		licenses = append(licenses, l)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit provision: %w", err)
	}

	s.publish(ctx, domain.EventLicenseKeyCreated, lk.ID, in.BrandID, map[string]any{
		"license_key_id": lk.ID,
		"customer_email": lk.CustomerEmail,
	})
	for _, l := range licenses {
		s.publish(ctx, domain.EventLicenseProvisioned, l.ID, in.BrandID, map[string]any{
			"license_key_id": lk.ID,
			"product_id":     l.ProductID,
		})
	}

	return &ProvisionResult{LicenseKey: lk, Licenses: licenses}, nil
}

// Renew, Suspend, Resume, and Cancel each load the license (scoped to the
// calling brand), apply the domain transition, persist, and publish.

func (s *Service) Renew(ctx context.Context, brandID, licenseID uuid.UUID, newExpiresAt time.Time) (*domain.License, error) {
	return s.mutate(ctx, brandID, licenseID, domain.EventLicenseRenewed, func(l *domain.License, now time.Time) error {
		return l.Renew(newExpiresAt, now)
	})
}

func (s *Service) Suspend(ctx context.Context, brandID, licenseID uuid.UUID) (*domain.License, error) {
	return s.mutate(ctx, brandID, licenseID, domain.EventLicenseSuspended, func(l *domain.License, now time.Time) error {
		return l.Suspend(now)
	})
}

func (s *Service) Resume(ctx context.Context, brandID, licenseID uuid.UUID) (*domain.License, error) {
	return s.mutate(ctx, brandID, licenseID, domain.EventLicenseResumed, func(l *domain.License, now time.Time) error {
		return l.Resume(now)
	})
}

func (s *Service) Cancel(ctx context.Context, brandID, licenseID uuid.UUID) (*domain.License, error) {
	return s.mutate(ctx, brandID, licenseID, domain.EventLicenseCancelled, func(l *domain.License, now time.Time) error {
		return l.Cancel(now)
	})
}

func (s *Service) mutate(
	ctx context.Context,
	brandID, licenseID uuid.UUID,
	event domain.EventType,
	transition func(l *domain.License, now time.Time) error,
) (*domain.License, error) {
	license, err := s.loadScoped(ctx, brandID, licenseID)
	if err != nil {
		return nil, err
	}

	if err := transition(license, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := s.licenses.Update(ctx, s.q, license); err != nil {
		return nil, fmt.Errorf("persist license mutation: %w", err)
	}

	s.publish(ctx, event, license.ID, brandID, map[string]any{
		"license_key_id": license.LicenseKeyID,
		"status":         string(license.Status),
	})
	return license, nil
}

// loadScoped loads a license and verifies it is owned, transitively via its
// license key, by brandID — the tenant isolation boundary every brand-route
// mutation must enforce.
func (s *Service) loadScoped(ctx context.Context, brandID, licenseID uuid.UUID) (*domain.License, error) {
	license, err := s.licenses.GetByID(ctx, s.q, licenseID)
	if err != nil {
		return nil, fmt.Errorf("load license: %w", err)
	}
	if license == nil {
		return nil, domain.ErrLicenseNotFound
	}
	lk, err := s.licenseKeys.GetByID(ctx, license.LicenseKeyID)
	if err != nil {
		return nil, fmt.Errorf("load license key: %w", err)
	}
	if lk == nil || lk.BrandID != brandID {
		return nil, domain.ErrLicenseNotFound
	}
	return license, nil
}

// ListByEmail returns every license under any key the brand issued to
// customerEmail, with live seat counts, batching product lookups into one
// call per request instead of one per license.
func (s *Service) ListByEmail(ctx context.Context, brandID uuid.UUID, customerEmail string) ([]*domain.LicenseStatusEntry, error) {
	keys, err := s.licenseKeys.ListByBrandAndEmail(ctx, brandID, customerEmail)
	if err != nil {
		return nil, fmt.Errorf("list license keys: %w", err)
	}

	var allLicenses []*domain.License
	licenseKeyByLicense := make(map[uuid.UUID]*domain.LicenseKey)
	for _, lk := range keys {
		ls, err := s.licenses.ListByLicenseKeyID(ctx, s.q, lk.ID)
		if err != nil {
			return nil, fmt.Errorf("list licenses for key %s: %w", lk.ID, err)
		}
		for _, l := range ls {
			licenseKeyByLicense[l.ID] = lk
			allLicenses = append(allLicenses, l)
		}
	}
	if len(allLicenses) == 0 {
		return nil, nil
	}

	productIDs := make([]uuid.UUID, 0, len(allLicenses))
	for _, l := range allLicenses {
		productIDs = append(productIDs, l.ProductID)
	}
	products, err := s.products.ListByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("batch load products: %w", err)
	}

	entries := make([]*domain.LicenseStatusEntry, 0, len(allLicenses))
	for _, l := range allLicenses {
		used, err := s.activations.CountActive(ctx, s.q, l.ID)
		if err != nil {
			return nil, fmt.Errorf("count active seats for license %s: %w", l.ID, err)
		}
		entries = append(entries, buildStatusEntry(l, products[l.ProductID], used))
	}
	return entries, nil
}

func (s *Service) publish(ctx context.Context, t domain.EventType, aggregateID, brandID uuid.UUID, payload map[string]any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.NewEvent(t, aggregateID, brandID, payload)); err != nil {
		s.logger.Error("publish event failed", "event_type", t, "error", err)
	}
}

func buildStatusEntry(l *domain.License, p *domain.Product, used int) *domain.LicenseStatusEntry {
	entry := &domain.LicenseStatusEntry{
		LicenseID:      l.ID,
		Status:         l.Status,
		SeatLimit:      l.SeatLimit,
		SeatsUsed:      used,
		SeatsRemaining: max(0, l.SeatLimit-used),
	}
	if p != nil {
		entry.ProductName = p.Name
		entry.ProductSlug = p.Slug
	}
	if l.ExpiresAt != nil {
		s := l.ExpiresAt.Format(time.RFC3339)
		entry.ExpiresAt = &s
	}
	return entry
}
