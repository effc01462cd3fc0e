package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// ArchiveDAO persists domain.ArchiveRule and domain.ArchiveRecord rows.
type ArchiveDAO struct {
	db     *sqlx.DB
	userID string
}

type archiveRuleRow struct {
	ID                 string     `db:"id"`
	UserID             string     `db:"user_id"`
	Name               string     `db:"name"`
	CriteriaJSON       string     `db:"criteria_json"`
	Action             string     `db:"action"`
	Method             string     `db:"method"`
	ScheduleFrequency  string     `db:"schedule_frequency"`
	ScheduleTime       string     `db:"schedule_time"`
	ScheduleWeekday    int        `db:"schedule_weekday"`
	ScheduleDayOfMonth int        `db:"schedule_day_of_month"`
	LastFiredAt        *time.Time `db:"last_fired_at"`
	CreatedAt          time.Time  `db:"created_at"`
}

func ruleToRow(r *domain.ArchiveRule) archiveRuleRow {
	criteria, _ := json.Marshal(r.Criteria)
	row := archiveRuleRow{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		CriteriaJSON: string(criteria),
		Action:       string(r.Action),
		Method:       string(r.Method),
		CreatedAt:    r.CreatedAt,
	}
	if r.Schedule != nil {
		row.ScheduleFrequency = string(r.Schedule.Frequency)
		row.ScheduleTime = r.Schedule.Time
		row.ScheduleWeekday = r.Schedule.Weekday
		row.ScheduleDayOfMonth = r.Schedule.DayOfMonth
		row.LastFiredAt = r.Schedule.LastFiredAt
	}
	return row
}

func ruleFromRow(row *archiveRuleRow) *domain.ArchiveRule {
	r := &domain.ArchiveRule{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		Action:    domain.CleanupAction(row.Action),
		Method:    domain.CleanupMethod(row.Method),
		CreatedAt: row.CreatedAt,
	}
	_ = json.Unmarshal([]byte(row.CriteriaJSON), &r.Criteria)
	if row.ScheduleFrequency != "" {
		r.Schedule = &domain.Schedule{
			Frequency:   domain.ScheduleFrequency(row.ScheduleFrequency),
			Time:        row.ScheduleTime,
			Weekday:     row.ScheduleWeekday,
			DayOfMonth:  row.ScheduleDayOfMonth,
			LastFiredAt: row.LastFiredAt,
		}
	}
	return r
}

const archiveRuleColumns = `id, user_id, name, criteria_json, action, method,
	schedule_frequency, schedule_time, schedule_weekday, schedule_day_of_month, last_fired_at, created_at`

func (d *ArchiveDAO) CreateRule(ctx context.Context, r *domain.ArchiveRule) error {
	r.UserID = d.userID
	row := ruleToRow(r)
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO archive_rules (`+archiveRuleColumns+`)
		VALUES (:id, :user_id, :name, :criteria_json, :action, :method,
			:schedule_frequency, :schedule_time, :schedule_weekday, :schedule_day_of_month, :last_fired_at, :created_at)`, row)
	return mapErr("create archive rule", err)
}

func (d *ArchiveDAO) GetRule(ctx context.Context, id string) (*domain.ArchiveRule, error) {
	var row archiveRuleRow
	err := d.db.GetContext(ctx, &row, `SELECT `+archiveRuleColumns+` FROM archive_rules WHERE id=? AND user_id=?`, id, d.userID)
	if err != nil {
		return nil, mapErr("archive rule", err)
	}
	return ruleFromRow(&row), nil
}

func (d *ArchiveDAO) ListRules(ctx context.Context) ([]*domain.ArchiveRule, error) {
	var rows []archiveRuleRow
	if err := d.db.SelectContext(ctx, &rows, `SELECT `+archiveRuleColumns+` FROM archive_rules WHERE user_id=?`, d.userID); err != nil {
		return nil, mapErr("list archive rules", err)
	}
	out := make([]*domain.ArchiveRule, len(rows))
	for i := range rows {
		out[i] = ruleFromRow(&rows[i])
	}
	return out, nil
}

func (d *ArchiveDAO) DeleteRule(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM archive_rules WHERE id=? AND user_id=?`, id, d.userID)
	if err != nil {
		return mapErr("delete archive rule", err)
	}
	return requireRowsAffected(res, "archive_rule")
}

type archiveRecordRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	RuleID         string    `db:"rule_id"`
	MessageIDsJSON string    `db:"message_ids_json"`
	Method         string    `db:"method"`
	Location       string    `db:"location"`
	SizeBytes      int64     `db:"size_bytes"`
	Restorable     bool      `db:"restorable"`
	CreatedAt      time.Time `db:"created_at"`
}

const archiveRecordColumns = `id, user_id, rule_id, message_ids_json, method, location, size_bytes, restorable, created_at`

// CreateRecord persists one ArchiveRecord, the receipt for an archive or
// export-then-delete run (ad-hoc or rule-triggered).
func (d *ArchiveDAO) CreateRecord(ctx context.Context, rec *domain.ArchiveRecord) error {
	rec.UserID = d.userID
	ids, _ := json.Marshal(rec.MessageIDs)
	row := archiveRecordRow{
		ID:             rec.ID,
		UserID:         rec.UserID,
		RuleID:         rec.RuleID,
		MessageIDsJSON: string(ids),
		Method:         string(rec.Method),
		Location:       rec.Location,
		SizeBytes:      rec.SizeBytes,
		Restorable:     rec.Restorable,
		CreatedAt:      rec.CreatedAt,
	}
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO archive_records (`+archiveRecordColumns+`)
		VALUES (:id, :user_id, :rule_id, :message_ids_json, :method, :location, :size_bytes, :restorable, :created_at)`, row)
	return mapErr("create archive record", err)
}

func (d *ArchiveDAO) GetRecord(ctx context.Context, id string) (*domain.ArchiveRecord, error) {
	var row archiveRecordRow
	err := d.db.GetContext(ctx, &row, `SELECT `+archiveRecordColumns+` FROM archive_records WHERE id=? AND user_id=?`, id, d.userID)
	if err != nil {
		return nil, mapErr("archive record", err)
	}
	rec := &domain.ArchiveRecord{
		ID:         row.ID,
		UserID:     row.UserID,
		RuleID:     row.RuleID,
		Method:     domain.CleanupMethod(row.Method),
		Location:   row.Location,
		SizeBytes:  row.SizeBytes,
		Restorable: row.Restorable,
		CreatedAt:  row.CreatedAt,
	}
	_ = json.Unmarshal([]byte(row.MessageIDsJSON), &rec.MessageIDs)
	return rec, nil
}

// SetRestorable flips a record's Restorable flag once its export file (or
// provider trash entry) has expired past the point a restore can reach it.
func (d *ArchiveDAO) SetRestorable(ctx context.Context, id string, restorable bool) error {
	_, err := d.db.ExecContext(ctx, `UPDATE archive_records SET restorable=? WHERE id=? AND user_id=?`, restorable, id, d.userID)
	return mapErr("update archive record", err)
}
