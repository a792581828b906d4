package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/armorclaw/license-server/internal/domain"
)

// WebhookRepo implements store.WebhookRepo.
type WebhookRepo struct{ db *DB }

func NewWebhookRepo(db *DB) *WebhookRepo { return &WebhookRepo{db: db} }

func (r *WebhookRepo) ListActiveForBrand(ctx context.Context, brandID uuid.UUID) ([]*domain.WebhookConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, brand_id, url, secret, events, is_active, max_retries, timeout_seconds, created_at
		FROM webhook_configs WHERE brand_id = $1 AND is_active = true
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("query webhook configs: %w", err)
	}
	defer rows.Close()

	var out []*domain.WebhookConfig
	for rows.Next() {
		w := &domain.WebhookConfig{}
		var events []string
		if err := rows.Scan(&w.ID, &w.BrandID, &w.URL, &w.Secret, pq.Array(&events), &w.IsActive, &w.MaxRetries, &w.TimeoutSeconds, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Events = make(map[domain.EventType]struct{}, len(events))
		for _, e := range events {
			w.Events[domain.EventType(e)] = struct{}{}
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
