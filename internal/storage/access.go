package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// AccessDAO persists the raw access_events log plus the derived
// access_summaries rows AccessPatternTracker maintains incrementally.
type AccessDAO struct {
	db     *sqlx.DB
	userID string
}

// RecordEvent appends one raw event. Callers derive the updated summary
// themselves (internal/access owns that arithmetic) and call
// UpsertSummary; this method never recomputes a summary on its own.
func (d *AccessDAO) RecordEvent(ctx context.Context, e *domain.AccessEvent) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO access_events (user_id, message_id, kind, occurred_at) VALUES (?, ?, ?, ?)`,
		d.userID, e.MessageID, string(e.Kind), e.OccurredAt)
	return mapErr("record access event", err)
}

func (d *AccessDAO) GetSummary(ctx context.Context, messageID string) (*domain.AccessSummary, error) {
	var s domain.AccessSummary
	err := d.db.GetContext(ctx, &s, `
		SELECT message_id, total_accesses, last_accessed, search_appearances, search_interactions, access_score
		FROM access_summaries WHERE user_id=? AND message_id=?`, d.userID, messageID)
	if err != nil {
		return nil, mapErr("access summary", err)
	}
	return &s, nil
}

// UpsertSummary replaces the derived summary for one message.
func (d *AccessDAO) UpsertSummary(ctx context.Context, s *domain.AccessSummary) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO access_summaries (user_id, message_id, total_accesses, last_accessed, search_appearances, search_interactions, access_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, message_id) DO UPDATE SET
			total_accesses=excluded.total_accesses, last_accessed=excluded.last_accessed,
			search_appearances=excluded.search_appearances, search_interactions=excluded.search_interactions,
			access_score=excluded.access_score`,
		d.userID, s.MessageID, s.TotalAccesses, s.LastAccessed, s.SearchAppearances, s.SearchInteractions, s.AccessScore)
	return mapErr("upsert access summary", err)
}

// ListStale returns summaries with AccessScore >= minScore, used by
// staleness scoring to avoid recomputing access scores for every message on
// every run.
func (d *AccessDAO) ListStale(ctx context.Context, minScore float64) ([]*domain.AccessSummary, error) {
	var out []*domain.AccessSummary
	err := d.db.SelectContext(ctx, &out, `
		SELECT message_id, total_accesses, last_accessed, search_appearances, search_interactions, access_score
		FROM access_summaries WHERE user_id=? AND access_score >= ?`, d.userID, minScore)
	if err != nil {
		return nil, mapErr("list stale access summaries", err)
	}
	return out, nil
}

// PruneEventsBefore deletes raw events older than cutoff, keeping the
// events table from growing unbounded; the derived summary already carries
// forward everything downstream scoring needs.
func (d *AccessDAO) PruneEventsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM access_events WHERE user_id=? AND occurred_at < ?`, d.userID, cutoff)
	return mapErr("prune access events", err)
}
