package storage

import (
	"context"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// AuditDAO persists domain.AuditEntry rows scoped to one user's own
// database — every resource-level decision (job visibility, policy
// mutation, file access) that validate_access makes on that user's data.
// System-wide events (login, admin actions) go through SystemStore's own
// audit log instead.
type AuditDAO struct {
	db     *sqlx.DB
	userID string
}

func (d *AuditDAO) Record(ctx context.Context, e *domain.AuditEntry) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, resource_type, resource_id, success, reason, ip, agent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.userID, e.Action, e.ResourceType, e.ResourceID, e.Success, e.Reason, e.IP, e.Agent, e.Timestamp)
	return mapErr("record audit", err)
}

// List returns the most recent audit entries for this user, newest first.
func (d *AuditDAO) List(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	var out []*domain.AuditEntry
	err := d.db.SelectContext(ctx, &out, `
		SELECT id, user_id, action, resource_type, resource_id, success, reason, ip, agent, timestamp
		FROM audit_log WHERE user_id=? ORDER BY timestamp DESC LIMIT ?`, d.userID, limit)
	if err != nil {
		return nil, mapErr("list audit entries", err)
	}
	return out, nil
}
