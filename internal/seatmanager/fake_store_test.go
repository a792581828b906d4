package seatmanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/store"
)

// fakeDB is a minimal store.TxBeginner backed by per-license mutexes, so
// GetForUpdate can reproduce the row-lock semantics the real Postgres
// implementation gets from "SELECT ... FOR UPDATE" without a database.
type fakeDB struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newFakeDB() *fakeDB {
	return &fakeDB{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (d *fakeDB) lockFor(id uuid.UUID) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.locks[id]
	if !ok {
		m = &sync.Mutex{}
		d.locks[id] = m
	}
	return m
}

func (d *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (store.Tx, error) {
	return &fakeTx{db: d}, nil
}

// fakeTx satisfies store.Tx. It holds whatever per-license lock GetForUpdate
// acquired and releases it on Commit/Rollback, whichever runs first.
type fakeTx struct {
	db       *fakeDB
	once     sync.Once
	unlockFn func()
}

func (tx *fakeTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, fmt.Errorf("not implemented in fake")
}
func (tx *fakeTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row { return nil }
func (tx *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (tx *fakeTx) release() {
	tx.once.Do(func() {
		if tx.unlockFn != nil {
			tx.unlockFn()
		}
	})
}

func (tx *fakeTx) Commit() error   { tx.release(); return nil }
func (tx *fakeTx) Rollback() error { tx.release(); return nil }

// fakeLicenseRepo stores licenses in memory, locking per-id in GetForUpdate
// to mirror the Postgres row lock the real implementation takes.
type fakeLicenseRepo struct {
	db *fakeDB

	mu       sync.Mutex
	licenses map[uuid.UUID]*domain.License
}

func newFakeLicenseRepo(db *fakeDB) *fakeLicenseRepo {
	return &fakeLicenseRepo{db: db, licenses: make(map[uuid.UUID]*domain.License)}
}

func (r *fakeLicenseRepo) put(l *domain.License) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.licenses[l.ID] = &cp
}

func (r *fakeLicenseRepo) Create(ctx context.Context, q store.Querier, l *domain.License) error {
	r.put(l)
	return nil
}

func (r *fakeLicenseRepo) GetByID(ctx context.Context, q store.Querier, id uuid.UUID) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.licenses[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLicenseRepo) GetForUpdate(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.License, error) {
	lock := r.db.lockFor(id)
	lock.Lock()
	tx.(*fakeTx).unlockFn = lock.Unlock

	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.licenses[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLicenseRepo) Update(ctx context.Context, q store.Querier, l *domain.License) error {
	r.put(l)
	return nil
}

func (r *fakeLicenseRepo) ListByLicenseKeyID(ctx context.Context, q store.Querier, licenseKeyID uuid.UUID) ([]*domain.License, error) {
	return nil, nil
}

func (r *fakeLicenseRepo) SweepExpired(ctx context.Context, now time.Time) ([]*domain.License, error) {
	return nil, nil
}

// fakeActivationRepo stores activations keyed by (licenseID, instance).
type fakeActivationRepo struct {
	mu        sync.Mutex
	byLicense map[uuid.UUID]map[string]*domain.Activation
	byID      map[uuid.UUID]*domain.Activation
}

func newFakeActivationRepo() *fakeActivationRepo {
	return &fakeActivationRepo{
		byLicense: make(map[uuid.UUID]map[string]*domain.Activation),
		byID:      make(map[uuid.UUID]*domain.Activation),
	}
}

func (r *fakeActivationRepo) GetByLicenseAndInstance(ctx context.Context, q store.Querier, licenseID uuid.UUID, instanceIdentifier string) (*domain.Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byLicense[licenseID]
	if !ok {
		return nil, nil
	}
	a, ok := m[instanceIdentifier]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeActivationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeActivationRepo) CountActive(ctx context.Context, q store.Querier, licenseID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.byLicense[licenseID] {
		if a.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *fakeActivationRepo) Insert(ctx context.Context, q store.Querier, a *domain.Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	if r.byLicense[a.LicenseID] == nil {
		r.byLicense[a.LicenseID] = make(map[string]*domain.Activation)
	}
	r.byLicense[a.LicenseID][a.InstanceIdentifier] = &cp
	r.byID[a.ID] = &cp
	return nil
}

func (r *fakeActivationRepo) Update(ctx context.Context, q store.Querier, a *domain.Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	if r.byLicense[a.LicenseID] == nil {
		r.byLicense[a.LicenseID] = make(map[string]*domain.Activation)
	}
	r.byLicense[a.LicenseID][a.InstanceIdentifier] = &cp
	r.byID[a.ID] = &cp
	return nil
}

// fakeLicenseKeyRepo is just enough to satisfy brandIDFor's lookup.
type fakeLicenseKeyRepo struct {
	keys map[uuid.UUID]*domain.LicenseKey
}

func newFakeLicenseKeyRepo() *fakeLicenseKeyRepo {
	return &fakeLicenseKeyRepo{keys: make(map[uuid.UUID]*domain.LicenseKey)}
}

func (r *fakeLicenseKeyRepo) Create(ctx context.Context, q store.Querier, lk *domain.LicenseKey) error {
	r.keys[lk.ID] = lk
	return nil
}
func (r *fakeLicenseKeyRepo) GetByHash(ctx context.Context, hash string) (*domain.LicenseKey, error) {
	return nil, nil
}
func (r *fakeLicenseKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LicenseKey, error) {
	return r.keys[id], nil
}
func (r *fakeLicenseKeyRepo) ListByBrandAndEmail(ctx context.Context, brandID uuid.UUID, email string) ([]*domain.LicenseKey, error) {
	return nil, nil
}
