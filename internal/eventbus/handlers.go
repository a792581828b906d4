package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/armorclaw/license-server/internal/cache"
	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/store"
	"github.com/armorclaw/license-server/internal/webhook"
)

// NewAuditHandler records every event it sees as an append-only audit log
// row. Registered against every domain.EventType by the composition root.
func NewAuditHandler(audit store.AuditRepo, logger *slog.Logger) Handler {
	return func(ctx context.Context, e domain.Event) error {
		entry := &domain.AuditLog{
			ID:         uuid.New(),
			BrandID:    e.BrandID,
			EntityType: auditEntityType(e.Type),
			EntityID:   e.AggregateID,
			Action:     string(e.Type),
			Changes:    e.Payload,
			Actor:      "system",
			CreatedAt:  e.OccurredAt,
		}
		if err := audit.Insert(ctx, entry); err != nil {
			return fmt.Errorf("insert audit log: %w", err)
		}
		return nil
	}
}

func auditEntityType(t domain.EventType) string {
	switch t {
	case domain.EventLicenseActivated, domain.EventSeatDeactivated:
		return "activation"
	case domain.EventLicenseKeyCreated:
		return "license_key"
	default:
		return "license"
	}
}

// NewCacheInvalidationHandler evicts the cached status entry for whichever
// license key an event concerns, so the next status lookup reads through to
// Postgres instead of serving a stale cached value.
func NewCacheInvalidationHandler(keys store.LicenseKeyRepo, c *cache.Client) Handler {
	return func(ctx context.Context, e domain.Event) error {
		if c == nil {
			return nil
		}
		licenseKeyID, ok := e.LicenseKeyIDFromEvent()
		if !ok {
			return nil
		}
		lk, err := keys.GetByID(ctx, licenseKeyID)
		if err != nil {
			return fmt.Errorf("load license key for cache invalidation: %w", err)
		}
		if lk == nil {
			return nil
		}
		c.InvalidateStatusByHash(ctx, lk.KeyHash)
		return nil
	}
}

// NewWebhookHandler looks up the brand's active webhook subscriptions and
// hands matching ones off to the dispatcher. The dispatcher itself runs
// deliveries in the background, so this handler returns as soon as
// dispatch has been kicked off.
func NewWebhookHandler(webhooks store.WebhookRepo, dispatcher *webhook.Dispatcher) Handler {
	return func(ctx context.Context, e domain.Event) error {
		configs, err := webhooks.ListActiveForBrand(ctx, e.BrandID)
		if err != nil {
			return fmt.Errorf("list webhook configs: %w", err)
		}
		for _, cfg := range configs {
			if cfg.Subscribes(e.Type) {
				dispatcher.Dispatch(cfg, e)
			}
		}
		return nil
	}
}
