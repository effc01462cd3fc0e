package domain

import "time"

// CleanupAction is what a matching policy recommends doing to a message.
type CleanupAction string

const (
	ActionArchive CleanupAction = "archive"
	ActionDelete  CleanupAction = "delete"
)

// CleanupMethod distinguishes an in-place provider mutation from an
// export-then-remove flow.
type CleanupMethod string

const (
	MethodProvider CleanupMethod = "provider"
	MethodExport   CleanupMethod = "export"
)

// ScheduleFrequency is how a policy's schedule repeats.
type ScheduleFrequency string

const (
	ScheduleContinuous ScheduleFrequency = "continuous"
	ScheduleDaily      ScheduleFrequency = "daily"
	ScheduleWeekly     ScheduleFrequency = "weekly"
	ScheduleMonthly    ScheduleFrequency = "monthly"
)

// Schedule describes when a policy's automation should fire.
type Schedule struct {
	Frequency ScheduleFrequency `json:"frequency" db:"schedule_frequency"`
	// Time is "H:MM" or "HH:MM" in local time for daily/weekly/monthly
	// kinds, matching ^[0-2]?\d:[0-5]\d$.
	Time string `json:"time,omitempty" db:"schedule_time"`
	// Weekday is 0=Sunday..6=Saturday, only meaningful for ScheduleWeekly.
	Weekday int `json:"weekday,omitempty" db:"schedule_weekday"`
	// DayOfMonth is 1-31, only meaningful for ScheduleMonthly.
	DayOfMonth int `json:"day_of_month,omitempty" db:"schedule_day_of_month"`
	// LastFiredAt persists so a scheduled instant fires at most once even
	// across restarts or clock skew.
	LastFiredAt *time.Time `json:"last_fired_at,omitempty" db:"last_fired_at"`
}

// PolicyCriteria is the conjunctive match test for a policy: every non-nil
// field present must match.
type PolicyCriteria struct {
	AgeDaysMin          *int             `json:"age_days_min,omitempty"`
	ImportanceLevelMax  *ImportanceLevel `json:"importance_level_max,omitempty"`
	SizeThresholdMin    *int64           `json:"size_threshold_min,omitempty"`
	SpamScoreMin        *float64         `json:"spam_score_min,omitempty"`
	PromotionalScoreMin *float64         `json:"promotional_score_min,omitempty"`
	AccessScoreMax      *float64         `json:"access_score_max,omitempty"`
	NoAccessDays        *int             `json:"no_access_days,omitempty"`
}

// ExportFormat is the format a export-method policy writes to.
type ExportFormat string

const (
	ExportFormatMbox ExportFormat = "mbox"
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// SafetyOverrides layers per-policy overrides on top of engine-wide
// SafetyConfig defaults; nil fields inherit the engine default.
type SafetyOverrides struct {
	MaxEmailsPerRun      *int          `json:"max_emails_per_run,omitempty"`
	RequireConfirmation  *bool         `json:"require_confirmation,omitempty"`
	DryRunFirst          *bool         `json:"dry_run_first,omitempty"`
	PreserveImportant    *bool         `json:"preserve_important,omitempty"`
	ExportFormat         *ExportFormat `json:"export_format,omitempty"`
}

// CleanupPolicy is one user-defined (or system-default) cleanup rule.
type CleanupPolicy struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	Name      string `json:"name" db:"name"`
	Enabled   bool   `json:"enabled" db:"enabled"`
	Priority  int    `json:"priority" db:"priority"` // 0..100, evaluated descending

	Criteria PolicyCriteria `json:"criteria"`

	Action CleanupAction `json:"action" db:"action"`
	Method CleanupMethod `json:"method" db:"method"`

	Safety SafetyOverrides `json:"safety"`

	Schedule Schedule `json:"schedule"`

	MaxEmailsPerRun int `json:"max_emails_per_run" db:"max_emails_per_run"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PreservesImportant reports whether this policy protects important
// messages unconditionally, overriding its own criteria.
func (p *CleanupPolicy) PreservesImportant() bool {
	return p.Safety.PreserveImportant != nil && *p.Safety.PreserveImportant
}

// EffectiveMaxEmailsPerRun returns the policy's override if set, else the
// policy-level default.
func (p *CleanupPolicy) EffectiveMaxEmailsPerRun() int {
	if p.Safety.MaxEmailsPerRun != nil {
		return *p.Safety.MaxEmailsPerRun
	}
	return p.MaxEmailsPerRun
}

// SortPolicies orders policies by priority descending, then creation time
// ascending.
func SortPolicies(policies []*CleanupPolicy) {
	// insertion sort: policy lists are small (dozens, not thousands) and
	// this keeps the comparator trivial to read and test.
	for i := 1; i < len(policies); i++ {
		for j := i; j > 0 && lessPolicy(policies[j], policies[j-1]); j-- {
			policies[j], policies[j-1] = policies[j-1], policies[j]
		}
	}
}

func lessPolicy(a, b *CleanupPolicy) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
