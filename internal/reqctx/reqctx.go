// Package reqctx carries per-request identity (correlation id, trace id,
// and the resolved brand/license-key principal) through context.Context
// instead of untyped request-attribute attachment.
package reqctx

import (
	"context"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/domain"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	traceIDKey
	brandKey
	apiKeyKey
	licenseKeyKey
)

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// WithBrand attaches the authenticated brand and the api key used.
func WithBrand(ctx context.Context, brand *domain.Brand, key *domain.APIKey) context.Context {
	ctx = context.WithValue(ctx, brandKey, brand)
	return context.WithValue(ctx, apiKeyKey, key)
}

func Brand(ctx context.Context) (*domain.Brand, bool) {
	b, ok := ctx.Value(brandKey).(*domain.Brand)
	return b, ok
}

func AuthenticatedAPIKey(ctx context.Context) (*domain.APIKey, bool) {
	k, ok := ctx.Value(apiKeyKey).(*domain.APIKey)
	return k, ok
}

// WithLicenseKey attaches the authenticated product-route license key.
func WithLicenseKey(ctx context.Context, lk *domain.LicenseKey) context.Context {
	return context.WithValue(ctx, licenseKeyKey, lk)
}

func LicenseKey(ctx context.Context) (*domain.LicenseKey, bool) {
	lk, ok := ctx.Value(licenseKeyKey).(*domain.LicenseKey)
	return lk, ok
}

// NewID generates a fresh correlation/trace id (google/uuid, matching the
// rest of the module's id scheme).
func NewID() string {
	return uuid.New().String()
}
