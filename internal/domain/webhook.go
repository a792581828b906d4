package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookConfig is a brand-scoped subscription delivered to by the webhook
// dispatcher whenever one of Events fires for that brand.
type WebhookConfig struct {
	ID             uuid.UUID
	BrandID        uuid.UUID
	URL            string
	Secret         string
	Events         map[EventType]struct{}
	IsActive       bool
	MaxRetries     int
	TimeoutSeconds int
	CreatedAt      time.Time
}

// Subscribes reports whether the config wants deliveries for et.
func (c *WebhookConfig) Subscribes(et EventType) bool {
	if !c.IsActive {
		return false
	}
	_, ok := c.Events[et]
	return ok
}

// AuditLog is an append-only trail entry; never mutated or deleted.
type AuditLog struct {
	ID         uuid.UUID
	BrandID    uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     string
	Changes    map[string]any
	Actor      string
	CreatedAt  time.Time
}

// IdempotencyRecord is the stored reply for a previously-handled mutating
// request, keyed by (BrandID, Key).
type IdempotencyRecord struct {
	Key          string
	BrandID      uuid.UUID
	ResponseData []byte
	StatusCode   int
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// DefaultIdempotencyTTL is the default retention window for a stored
// idempotent response.
const DefaultIdempotencyTTL = 24 * time.Hour
