package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/armorclaw/license-server/internal/domain"
)

// AuditRepo implements store.AuditRepo. Rows are append-only: there is no
// Update or Delete method by design.
type AuditRepo struct{ db *DB }

func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Insert(ctx context.Context, a *domain.AuditLog) error {
	changesJSON, err := json.Marshal(a.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, brand_id, entity_type, entity_id, action, changes, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.BrandID, a.EntityType, a.EntityID, a.Action, changesJSON, a.Actor, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
