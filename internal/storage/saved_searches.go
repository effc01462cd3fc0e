package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// SavedSearchDAO persists domain.SavedSearch rows for one user. Criteria is
// stored as a JSON blob, the same sparse-override-bag treatment PolicyDAO
// gives domain.CleanupPolicy's Criteria field.
type SavedSearchDAO struct {
	db     *sqlx.DB
	userID string
}

type savedSearchRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Name         string    `db:"name"`
	CriteriaJSON string    `db:"criteria_json"`
	CreatedAt    time.Time `db:"created_at"`
}

func (d *SavedSearchDAO) Create(ctx context.Context, s *domain.SavedSearch) error {
	s.UserID = d.userID
	criteria, err := json.Marshal(s.Criteria)
	if err != nil {
		return mapErr("encode saved search criteria", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO saved_searches (id, user_id, name, criteria_json, created_at)
		VALUES (?, ?, ?, ?, ?)`, s.ID, s.UserID, s.Name, string(criteria), s.CreatedAt)
	return mapErr("create saved search", err)
}

// List returns every saved search for this user, newest first.
func (d *SavedSearchDAO) List(ctx context.Context) ([]*domain.SavedSearch, error) {
	var rows []savedSearchRow
	if err := d.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, name, criteria_json, created_at FROM saved_searches
		WHERE user_id=? ORDER BY created_at DESC`, d.userID); err != nil {
		return nil, mapErr("list saved searches", err)
	}
	out := make([]*domain.SavedSearch, 0, len(rows))
	for _, r := range rows {
		s, err := savedSearchFromRow(&r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *SavedSearchDAO) Get(ctx context.Context, id string) (*domain.SavedSearch, error) {
	var r savedSearchRow
	err := d.db.GetContext(ctx, &r, `
		SELECT id, user_id, name, criteria_json, created_at FROM saved_searches
		WHERE id=? AND user_id=?`, id, d.userID)
	if err != nil {
		return nil, mapErr("saved search", err)
	}
	return savedSearchFromRow(&r)
}

func (d *SavedSearchDAO) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE id=? AND user_id=?`, id, d.userID)
	if err != nil {
		return mapErr("delete saved search", err)
	}
	return requireRowsAffected(res, "saved_search")
}

func savedSearchFromRow(r *savedSearchRow) (*domain.SavedSearch, error) {
	s := &domain.SavedSearch{ID: r.ID, UserID: r.UserID, Name: r.Name, CreatedAt: r.CreatedAt}
	if err := json.Unmarshal([]byte(r.CriteriaJSON), &s.Criteria); err != nil {
		return nil, mapErr("decode saved search criteria", err)
	}
	return s, nil
}
