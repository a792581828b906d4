package licensesvc

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/store"
)

// fakeTx is a no-op store.Tx: these tests exercise orchestration, not
// transaction isolation (seatmanager's tests cover the row-lock behavior).
type fakeTx struct{}

func (fakeTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}
func (fakeTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row { return nil }
func (fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeDB struct{}

func (fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (store.Tx, error) {
	return fakeTx{}, nil
}

type fakeBrandRepo struct {
	mu     sync.Mutex
	brands map[uuid.UUID]*domain.Brand
}

func newFakeBrandRepo() *fakeBrandRepo {
	return &fakeBrandRepo{brands: make(map[uuid.UUID]*domain.Brand)}
}

func (r *fakeBrandRepo) Create(ctx context.Context, b *domain.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brands[b.ID] = b
	return nil
}
func (r *fakeBrandRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.brands[id], nil
}
func (r *fakeBrandRepo) GetBySlug(ctx context.Context, slug string) (*domain.Brand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.brands {
		if b.Slug == slug {
			return b, nil
		}
	}
	return nil, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*domain.Product)}
}

func (r *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}
func (r *fakeProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id], nil
}
func (r *fakeProductRepo) GetBySlug(ctx context.Context, brandID uuid.UUID, slug string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.BrandID == brandID && p.Slug == slug {
			return p, nil
		}
	}
	return nil, nil
}
func (r *fakeProductRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*domain.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
func (r *fakeProductRepo) BelongsToBrand(ctx context.Context, productID, brandID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	return ok && p.BrandID == brandID, nil
}

type fakeLicenseKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*domain.LicenseKey
}

func newFakeLicenseKeyRepo() *fakeLicenseKeyRepo {
	return &fakeLicenseKeyRepo{keys: make(map[uuid.UUID]*domain.LicenseKey)}
}

func (r *fakeLicenseKeyRepo) Create(ctx context.Context, q store.Querier, lk *domain.LicenseKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[lk.ID] = lk
	return nil
}
func (r *fakeLicenseKeyRepo) GetByHash(ctx context.Context, hash string) (*domain.LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.KeyHash == hash {
			return k, nil
		}
	}
	return nil, nil
}
func (r *fakeLicenseKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[id], nil
}
func (r *fakeLicenseKeyRepo) ListByBrandAndEmail(ctx context.Context, brandID uuid.UUID, email string) ([]*domain.LicenseKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LicenseKey
	for _, k := range r.keys {
		if k.BrandID == brandID && k.CustomerEmail == email {
			out = append(out, k)
		}
	}
	return out, nil
}

type fakeLicenseRepo struct {
	mu       sync.Mutex
	licenses map[uuid.UUID]*domain.License
}

func newFakeLicenseRepo() *fakeLicenseRepo {
	return &fakeLicenseRepo{licenses: make(map[uuid.UUID]*domain.License)}
}

func (r *fakeLicenseRepo) Create(ctx context.Context, q store.Querier, l *domain.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.licenses[l.ID] = l
	return nil
}
func (r *fakeLicenseRepo) GetByID(ctx context.Context, q store.Querier, id uuid.UUID) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.licenses[id], nil
}
func (r *fakeLicenseRepo) GetForUpdate(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.License, error) {
	return r.GetByID(ctx, nil, id)
}
func (r *fakeLicenseRepo) Update(ctx context.Context, q store.Querier, l *domain.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.licenses[l.ID] = l
	return nil
}
func (r *fakeLicenseRepo) ListByLicenseKeyID(ctx context.Context, q store.Querier, licenseKeyID uuid.UUID) ([]*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.License
	for _, l := range r.licenses {
		if l.LicenseKeyID == licenseKeyID {
			out = append(out, l)
		}
	}
	return out, nil
}
func (r *fakeLicenseRepo) SweepExpired(ctx context.Context, now time.Time) ([]*domain.License, error) {
	return nil, nil
}

type fakeActivationRepo struct {
	mu      sync.Mutex
	counts  map[uuid.UUID]int
}

func newFakeActivationRepo() *fakeActivationRepo {
	return &fakeActivationRepo{counts: make(map[uuid.UUID]int)}
}

func (r *fakeActivationRepo) GetByLicenseAndInstance(ctx context.Context, q store.Querier, licenseID uuid.UUID, instanceIdentifier string) (*domain.Activation, error) {
	return nil, nil
}
func (r *fakeActivationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activation, error) {
	return nil, nil
}
func (r *fakeActivationRepo) CountActive(ctx context.Context, q store.Querier, licenseID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[licenseID], nil
}
func (r *fakeActivationRepo) Insert(ctx context.Context, q store.Querier, a *domain.Activation) error {
	return nil
}
func (r *fakeActivationRepo) Update(ctx context.Context, q store.Querier, a *domain.Activation) error {
	return nil
}
