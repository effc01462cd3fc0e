package domain

import (
	"strings"
	"time"
)

// ImportanceLevel is the coarse bucket Importance analysis assigns a
// message.
type ImportanceLevel string

const (
	ImportanceHigh   ImportanceLevel = "high"
	ImportanceMedium ImportanceLevel = "medium"
	ImportanceLow    ImportanceLevel = "low"
)

// AgeCategory is the coarse bucket DateSize analysis assigns a message by
// how long ago it arrived.
type AgeCategory string

const (
	AgeRecent   AgeCategory = "recent"
	AgeModerate AgeCategory = "moderate"
	AgeOld      AgeCategory = "old"
)

// SizeCategory is the coarse bucket DateSize analysis assigns a message by
// byte size.
type SizeCategory string

const (
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

// GmailCategory mirrors Gmail's own tab categories, as produced by the
// LabelClassifier analyzer.
type GmailCategory string

const (
	CategoryPrimary    GmailCategory = "primary"
	CategoryImportant  GmailCategory = "important"
	CategorySpam       GmailCategory = "spam"
	CategoryPromotions GmailCategory = "promotions"
	CategorySocial     GmailCategory = "social"
	CategoryUpdates    GmailCategory = "updates"
	CategoryForums     GmailCategory = "forums"
)

// ImportanceResult is the Importance analyzer's output for one message.
type ImportanceResult struct {
	Score      float64         `json:"importance_score" db:"importance_score"`
	Level      ImportanceLevel `json:"importance_level" db:"importance_level"`
	MatchedRuleIDs []string    `json:"matched_rule_ids,omitempty" db:"-"`
	Confidence float64         `json:"confidence" db:"importance_confidence"`
}

// DateSizeResult is the DateSize analyzer's output for one message.
type DateSizeResult struct {
	AgeCategory  AgeCategory  `json:"age_category" db:"age_category"`
	SizeCategory SizeCategory `json:"size_category" db:"size_category"`
	RecencyScore float64      `json:"recency_score" db:"recency_score"`
	SizePenalty  float64      `json:"size_penalty" db:"size_penalty"`
}

// LabelClassifierResult is the LabelClassifier analyzer's output for one
// message.
type LabelClassifierResult struct {
	GmailCategory    GmailCategory `json:"gmail_category" db:"gmail_category"`
	SpamScore        float64       `json:"spam_score" db:"spam_score"`
	PromotionalScore float64       `json:"promotional_score" db:"promotional_score"`
	SocialScore      float64       `json:"social_score" db:"social_score"`
	Indicators       []string      `json:"indicators,omitempty" db:"-"`
}

// AnalyzerResult bundles every analyzer's output for one message, written
// atomically per-analyzer: a partial update touches only the field set one
// analyzer owns, never another's.
type AnalyzerResult struct {
	Importance      *ImportanceResult      `json:"importance,omitempty"`
	DateSize        *DateSizeResult        `json:"date_size,omitempty"`
	LabelClassifier *LabelClassifierResult `json:"label_classifier,omitempty"`
	AnalysisVersion int                    `json:"analysis_version" db:"analysis_version"`
	AnalysisTime    time.Time              `json:"analysis_timestamp" db:"analysis_timestamp"`
}

// MessageIndex is the locally indexed view of a Gmail message. Identity is
// (UserID, MessageID); a row is never mutated by a user other than its
// owner.
type MessageIndex struct {
	UserID   string `json:"user_id" db:"user_id"`
	MessageID string `json:"message_id" db:"message_id"`
	ThreadID string `json:"thread_id" db:"thread_id"`

	Subject    string    `json:"subject" db:"subject"`
	Sender     string    `json:"sender" db:"sender"`
	Recipients []string  `json:"recipients" db:"-"`
	Date       time.Time `json:"date" db:"date"`
	Year       int       `json:"year" db:"year"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`

	HasAttachments bool     `json:"has_attachments" db:"has_attachments"`
	Labels         []string `json:"labels" db:"-"`
	Snippet        string   `json:"snippet" db:"snippet"`

	Archived        bool       `json:"archived" db:"archived"`
	ArchiveDate     *time.Time `json:"archive_date,omitempty" db:"archive_date"`
	ArchiveLocation string     `json:"archive_location,omitempty" db:"archive_location"`

	Analysis AnalyzerResult `json:"analysis"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Age returns how long ago the message's Date was, relative to now.
func (m *MessageIndex) Age(now time.Time) time.Duration {
	return now.Sub(m.Date)
}

// HasLabel reports whether label is present, case-insensitively.
func (m *MessageIndex) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}
