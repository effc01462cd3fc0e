package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// PolicyDAO persists domain.CleanupPolicy rows for one user. Criteria and
// Safety are stored as JSON blobs since they are sparse, pointer-typed
// structs treated as an opaque override bag rather than individually
// queryable columns.
type PolicyDAO struct {
	db     *sqlx.DB
	userID string
}

type policyRow struct {
	ID                 string     `db:"id"`
	UserID             string     `db:"user_id"`
	Name               string     `db:"name"`
	Enabled            bool       `db:"enabled"`
	Priority           int        `db:"priority"`
	CriteriaJSON       string     `db:"criteria_json"`
	Action             string     `db:"action"`
	Method             string     `db:"method"`
	SafetyJSON         string     `db:"safety_json"`
	ScheduleFrequency  string     `db:"schedule_frequency"`
	ScheduleTime       string     `db:"schedule_time"`
	ScheduleWeekday    int        `db:"schedule_weekday"`
	ScheduleDayOfMonth int        `db:"schedule_day_of_month"`
	LastFiredAt        *time.Time `db:"last_fired_at"`
	MaxEmailsPerRun    int        `db:"max_emails_per_run"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func policyToRow(p *domain.CleanupPolicy) policyRow {
	criteria, _ := json.Marshal(p.Criteria)
	safety, _ := json.Marshal(p.Safety)
	return policyRow{
		ID:                 p.ID,
		UserID:             p.UserID,
		Name:               p.Name,
		Enabled:            p.Enabled,
		Priority:           p.Priority,
		CriteriaJSON:       string(criteria),
		Action:             string(p.Action),
		Method:             string(p.Method),
		SafetyJSON:         string(safety),
		ScheduleFrequency:  string(p.Schedule.Frequency),
		ScheduleTime:       p.Schedule.Time,
		ScheduleWeekday:    p.Schedule.Weekday,
		ScheduleDayOfMonth: p.Schedule.DayOfMonth,
		LastFiredAt:        p.Schedule.LastFiredAt,
		MaxEmailsPerRun:    p.MaxEmailsPerRun,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func policyFromRow(r *policyRow) *domain.CleanupPolicy {
	p := &domain.CleanupPolicy{
		ID:              r.ID,
		UserID:          r.UserID,
		Name:            r.Name,
		Enabled:         r.Enabled,
		Priority:        r.Priority,
		Action:          domain.CleanupAction(r.Action),
		Method:          domain.CleanupMethod(r.Method),
		MaxEmailsPerRun: r.MaxEmailsPerRun,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Schedule: domain.Schedule{
			Frequency:   domain.ScheduleFrequency(r.ScheduleFrequency),
			Time:        r.ScheduleTime,
			Weekday:     r.ScheduleWeekday,
			DayOfMonth:  r.ScheduleDayOfMonth,
			LastFiredAt: r.LastFiredAt,
		},
	}
	_ = json.Unmarshal([]byte(r.CriteriaJSON), &p.Criteria)
	_ = json.Unmarshal([]byte(r.SafetyJSON), &p.Safety)
	return p
}

const policyColumns = `id, user_id, name, enabled, priority, criteria_json, action, method, safety_json,
	schedule_frequency, schedule_time, schedule_weekday, schedule_day_of_month, last_fired_at,
	max_emails_per_run, created_at, updated_at`

func (d *PolicyDAO) Create(ctx context.Context, p *domain.CleanupPolicy) error {
	p.UserID = d.userID
	r := policyToRow(p)
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO cleanup_policies (`+policyColumns+`)
		VALUES (:id, :user_id, :name, :enabled, :priority, :criteria_json, :action, :method, :safety_json,
			:schedule_frequency, :schedule_time, :schedule_weekday, :schedule_day_of_month, :last_fired_at,
			:max_emails_per_run, :created_at, :updated_at)`, r)
	return mapErr("create policy", err)
}

func (d *PolicyDAO) Update(ctx context.Context, p *domain.CleanupPolicy) error {
	r := policyToRow(p)
	res, err := d.db.NamedExecContext(ctx, `
		UPDATE cleanup_policies SET name=:name, enabled=:enabled, priority=:priority, criteria_json=:criteria_json,
			action=:action, method=:method, safety_json=:safety_json,
			schedule_frequency=:schedule_frequency, schedule_time=:schedule_time,
			schedule_weekday=:schedule_weekday, schedule_day_of_month=:schedule_day_of_month,
			last_fired_at=:last_fired_at, max_emails_per_run=:max_emails_per_run, updated_at=:updated_at
		WHERE id=:id AND user_id=:user_id`, r)
	if err != nil {
		return mapErr("update policy", err)
	}
	return requireRowsAffected(res, "cleanup_policy")
}

func (d *PolicyDAO) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM cleanup_policies WHERE id=? AND user_id=?`, id, d.userID)
	if err != nil {
		return mapErr("delete policy", err)
	}
	return requireRowsAffected(res, "cleanup_policy")
}

func (d *PolicyDAO) Get(ctx context.Context, id string) (*domain.CleanupPolicy, error) {
	var r policyRow
	err := d.db.GetContext(ctx, &r, `SELECT `+policyColumns+` FROM cleanup_policies WHERE id=? AND user_id=?`, id, d.userID)
	if err != nil {
		return nil, mapErr("policy", err)
	}
	return policyFromRow(&r), nil
}

// List returns every policy for this user, sorted with domain.SortPolicies
// rather than SQL ORDER BY, since the tie-break on creation time
// is a domain invariant worth testing directly against the type.
func (d *PolicyDAO) List(ctx context.Context) ([]*domain.CleanupPolicy, error) {
	var rows []policyRow
	if err := d.db.SelectContext(ctx, &rows, `SELECT `+policyColumns+` FROM cleanup_policies WHERE user_id=?`, d.userID); err != nil {
		return nil, mapErr("list policies", err)
	}
	out := make([]*domain.CleanupPolicy, len(rows))
	for i := range rows {
		out[i] = policyFromRow(&rows[i])
	}
	domain.SortPolicies(out)
	return out, nil
}

// ListEnabled returns only enabled policies, already priority-sorted, for
// the automation engine and manual evaluate_emails_for_cleanup calls.
func (d *PolicyDAO) ListEnabled(ctx context.Context) ([]*domain.CleanupPolicy, error) {
	var rows []policyRow
	if err := d.db.SelectContext(ctx, &rows, `SELECT `+policyColumns+` FROM cleanup_policies WHERE user_id=? AND enabled=1`, d.userID); err != nil {
		return nil, mapErr("list enabled policies", err)
	}
	out := make([]*domain.CleanupPolicy, len(rows))
	for i := range rows {
		out[i] = policyFromRow(&rows[i])
	}
	domain.SortPolicies(out)
	return out, nil
}

// TouchSchedule persists Schedule.LastFiredAt so a fired instant is not
// re-fired after a restart.
func (d *PolicyDAO) TouchSchedule(ctx context.Context, id string, firedAt time.Time) error {
	_, err := d.db.ExecContext(ctx, `UPDATE cleanup_policies SET last_fired_at=? WHERE id=? AND user_id=?`, firedAt, id, d.userID)
	return mapErr("touch policy schedule", err)
}
