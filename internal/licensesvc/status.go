package licensesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
)

// GetLicenseStatus is a read-through cache lookup keyed by a fingerprint of
// the raw license key, falling through to the database on a miss or any
// cache error, and repopulating the cache on a successful database read.
func (s *Service) GetLicenseStatus(ctx context.Context, lk *domain.LicenseKey) (*domain.LicenseStatus, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetStatus(ctx, lk.Key); err == nil && cached != nil {
			return cached, nil
		}
	}

	licenses, err := s.licenses.ListByLicenseKeyID(ctx, s.q, lk.ID)
	if err != nil {
		return nil, fmt.Errorf("list licenses for status: %w", err)
	}

	status, err := s.buildStatus(ctx, lk, licenses)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetStatus(ctx, lk.Key, status)
	}
	return status, nil
}

func (s *Service) buildStatus(ctx context.Context, lk *domain.LicenseKey, licenses []*domain.License) (*domain.LicenseStatus, error) {
	productIDs := make([]uuid.UUID, 0, len(licenses))
	for _, l := range licenses {
		productIDs = append(productIDs, l.ProductID)
	}
	products, err := s.products.ListByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("batch load products: %w", err)
	}

	now := time.Now().UTC()
	status := &domain.LicenseStatus{LicenseKeyID: lk.ID}
	for _, l := range licenses {
		used, err := s.activations.CountActive(ctx, s.q, l.ID)
		if err != nil {
			return nil, fmt.Errorf("count active seats for license %s: %w", l.ID, err)
		}
		entry := buildStatusEntry(l, products[l.ProductID], used)
		status.Licenses = append(status.Licenses, *entry)
		status.TotalSeatsUsed += used
		status.TotalSeatsAvailable += entry.SeatsRemaining
		if l.IsValid(now) {
			status.IsValid = true
		}
	}
	return status, nil
}
