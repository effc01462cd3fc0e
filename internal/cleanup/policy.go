// Package cleanup implements CRUD and validation for CleanupPolicy rows,
// plus EvaluateForCleanup, which scores a
// batch of messages against a user's policies and the layered safety
// checklist in internal/cleanup/safety.
package cleanup

import (
	"context"
	"regexp"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
)

var scheduleTimePattern = regexp.MustCompile(`^[0-2]?\d:[0-5]\d$`)

// PolicyEngine CRUDs CleanupPolicy rows for one user, validating every
// write against the field constraints below.
type PolicyEngine struct {
	dao *storage.PolicyDAO
}

func NewPolicyEngine(dao *storage.PolicyDAO) *PolicyEngine {
	return &PolicyEngine{dao: dao}
}

// Validate checks every field constraint a CleanupPolicy must satisfy. It
// never touches storage, so callers can validate a policy before
// generating its ID.
func Validate(p *domain.CleanupPolicy) error {
	if p.Name == "" {
		return apperr.MissingField("name")
	}
	if p.Priority < 0 || p.Priority > 100 {
		return apperr.InvalidInput("priority", "must be in [0,100]")
	}

	c := p.Criteria
	if c.AgeDaysMin != nil && *c.AgeDaysMin < 0 {
		return apperr.InvalidInput("age_days_min", "must be >= 0")
	}
	if c.ImportanceLevelMax != nil {
		switch *c.ImportanceLevelMax {
		case domain.ImportanceLow, domain.ImportanceMedium, domain.ImportanceHigh:
		default:
			return apperr.InvalidInput("importance_level_max", "must be low, medium, or high")
		}
	}
	if c.SizeThresholdMin != nil && *c.SizeThresholdMin < 0 {
		return apperr.InvalidInput("size_threshold_min", "must be >= 0")
	}
	if c.SpamScoreMin != nil && (*c.SpamScoreMin < 0 || *c.SpamScoreMin > 1) {
		return apperr.InvalidInput("spam_score_min", "must be in [0,1]")
	}
	if c.PromotionalScoreMin != nil && (*c.PromotionalScoreMin < 0 || *c.PromotionalScoreMin > 1) {
		return apperr.InvalidInput("promotional_score_min", "must be in [0,1]")
	}
	if c.AccessScoreMax != nil && (*c.AccessScoreMax < 0 || *c.AccessScoreMax > 1) {
		return apperr.InvalidInput("access_score_max", "must be in [0,1]")
	}
	if c.NoAccessDays != nil && *c.NoAccessDays < 0 {
		return apperr.InvalidInput("no_access_days", "must be >= 0")
	}

	switch p.Action {
	case domain.ActionArchive, domain.ActionDelete:
	default:
		return apperr.InvalidInput("action", "must be archive or delete")
	}
	switch p.Method {
	case domain.MethodProvider, domain.MethodExport:
	default:
		return apperr.InvalidInput("method", "must be provider or export")
	}
	if p.Method == domain.MethodExport {
		ef := p.Safety.ExportFormat
		if ef == nil {
			return apperr.MissingField("export_format")
		}
		switch *ef {
		case domain.ExportFormatMbox, domain.ExportFormatJSON:
		default:
			return apperr.InvalidInput("export_format", "must be mbox or json")
		}
	}

	if m := p.Safety.MaxEmailsPerRun; m != nil && *m < 1 {
		return apperr.InvalidInput("max_emails_per_run", "must be >= 1")
	}

	switch p.Schedule.Frequency {
	case domain.ScheduleContinuous, domain.ScheduleDaily, domain.ScheduleWeekly, domain.ScheduleMonthly, "":
	default:
		return apperr.InvalidInput("schedule.frequency", "must be continuous, daily, weekly, or monthly")
	}
	if p.Schedule.Time != "" && !scheduleTimePattern.MatchString(p.Schedule.Time) {
		return apperr.InvalidInput("schedule.time", "must match ^[0-2]?\\d:[0-5]\\d$")
	}

	return nil
}

func (e *PolicyEngine) Create(ctx context.Context, p *domain.CleanupPolicy) error {
	if err := Validate(p); err != nil {
		return err
	}
	return e.dao.Create(ctx, p)
}

func (e *PolicyEngine) Update(ctx context.Context, p *domain.CleanupPolicy) error {
	if err := Validate(p); err != nil {
		return err
	}
	return e.dao.Update(ctx, p)
}

func (e *PolicyEngine) Delete(ctx context.Context, id string) error {
	return e.dao.Delete(ctx, id)
}

func (e *PolicyEngine) Get(ctx context.Context, id string) (*domain.CleanupPolicy, error) {
	return e.dao.Get(ctx, id)
}

// List returns every policy, priority-sorted.
func (e *PolicyEngine) List(ctx context.Context) ([]*domain.CleanupPolicy, error) {
	return e.dao.List(ctx)
}

// Enabled returns only enabled policies, priority-sorted — the set
// EvaluateForCleanup and the automation engine actually walk.
func (e *PolicyEngine) Enabled(ctx context.Context) ([]*domain.CleanupPolicy, error) {
	return e.dao.ListEnabled(ctx)
}
