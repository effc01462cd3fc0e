package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// MessageDAO persists domain.MessageIndex rows. The domain type nests
// pointer sub-structs (Importance, DateSize, LabelClassifier) that sqlx
// cannot scan directly, so every method converts through messageRow, a
// flat struct whose db tags match the messages table columns one-to-one.
type MessageDAO struct {
	db     *sqlx.DB
	userID string
}

type messageRow struct {
	UserID          string         `db:"user_id"`
	MessageID       string         `db:"message_id"`
	ThreadID        string         `db:"thread_id"`
	Subject         string         `db:"subject"`
	Sender          string         `db:"sender"`
	RecipientsJSON  string         `db:"recipients_json"`
	Date            time.Time      `db:"date"`
	Year            int            `db:"year"`
	SizeBytes       int64          `db:"size_bytes"`
	HasAttachments  bool           `db:"has_attachments"`
	LabelsJSON      string         `db:"labels_json"`
	Snippet         string         `db:"snippet"`
	Archived        bool           `db:"archived"`
	ArchiveDate     *time.Time     `db:"archive_date"`
	ArchiveLocation string         `db:"archive_location"`

	ImportanceScore     *float64 `db:"importance_score"`
	ImportanceLevel     *string  `db:"importance_level"`
	MatchedRuleIDsJSON  string   `db:"matched_rule_ids_json"`
	ImportanceConfidence *float64 `db:"importance_confidence"`

	AgeCategory  *string  `db:"age_category"`
	SizeCategory *string  `db:"size_category"`
	RecencyScore *float64 `db:"recency_score"`
	SizePenalty  *float64 `db:"size_penalty"`

	GmailCategory    *string  `db:"gmail_category"`
	SpamScore        *float64 `db:"spam_score"`
	PromotionalScore *float64 `db:"promotional_score"`
	SocialScore      *float64 `db:"social_score"`
	IndicatorsJSON   string   `db:"indicators_json"`

	AnalysisVersion   int        `db:"analysis_version"`
	AnalysisTimestamp *time.Time `db:"analysis_timestamp"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func parseJSONList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func toRow(m *domain.MessageIndex) messageRow {
	r := messageRow{
		UserID:          m.UserID,
		MessageID:       m.MessageID,
		ThreadID:        m.ThreadID,
		Subject:         m.Subject,
		Sender:          m.Sender,
		RecipientsJSON:  jsonList(m.Recipients),
		Date:            m.Date,
		Year:            m.Year,
		SizeBytes:       m.SizeBytes,
		HasAttachments:  m.HasAttachments,
		LabelsJSON:      jsonList(m.Labels),
		Snippet:         m.Snippet,
		Archived:        m.Archived,
		ArchiveDate:     m.ArchiveDate,
		ArchiveLocation: m.ArchiveLocation,
		AnalysisVersion: m.Analysis.AnalysisVersion,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if !m.Analysis.AnalysisTime.IsZero() {
		t := m.Analysis.AnalysisTime
		r.AnalysisTimestamp = &t
	}
	if imp := m.Analysis.Importance; imp != nil {
		score, level, conf := imp.Score, string(imp.Level), imp.Confidence
		r.ImportanceScore = &score
		r.ImportanceLevel = &level
		r.ImportanceConfidence = &conf
		r.MatchedRuleIDsJSON = jsonList(imp.MatchedRuleIDs)
	}
	if ds := m.Analysis.DateSize; ds != nil {
		age, size, recency, penalty := string(ds.AgeCategory), string(ds.SizeCategory), ds.RecencyScore, ds.SizePenalty
		r.AgeCategory = &age
		r.SizeCategory = &size
		r.RecencyScore = &recency
		r.SizePenalty = &penalty
	}
	if lc := m.Analysis.LabelClassifier; lc != nil {
		cat, spam, promo, social := string(lc.GmailCategory), lc.SpamScore, lc.PromotionalScore, lc.SocialScore
		r.GmailCategory = &cat
		r.SpamScore = &spam
		r.PromotionalScore = &promo
		r.SocialScore = &social
		r.IndicatorsJSON = jsonList(lc.Indicators)
	}
	return r
}

func fromRow(r *messageRow) *domain.MessageIndex {
	m := &domain.MessageIndex{
		UserID:          r.UserID,
		MessageID:       r.MessageID,
		ThreadID:        r.ThreadID,
		Subject:         r.Subject,
		Sender:          r.Sender,
		Recipients:      parseJSONList(r.RecipientsJSON),
		Date:            r.Date,
		Year:            r.Year,
		SizeBytes:       r.SizeBytes,
		HasAttachments:  r.HasAttachments,
		Labels:          parseJSONList(r.LabelsJSON),
		Snippet:         r.Snippet,
		Archived:        r.Archived,
		ArchiveDate:     r.ArchiveDate,
		ArchiveLocation: r.ArchiveLocation,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	m.Analysis.AnalysisVersion = r.AnalysisVersion
	if r.AnalysisTimestamp != nil {
		m.Analysis.AnalysisTime = *r.AnalysisTimestamp
	}
	if r.ImportanceScore != nil {
		m.Analysis.Importance = &domain.ImportanceResult{
			Score:          *r.ImportanceScore,
			Level:          domain.ImportanceLevel(derefStr(r.ImportanceLevel)),
			MatchedRuleIDs: parseJSONList(r.MatchedRuleIDsJSON),
			Confidence:     derefFloat(r.ImportanceConfidence),
		}
	}
	if r.AgeCategory != nil {
		m.Analysis.DateSize = &domain.DateSizeResult{
			AgeCategory:  domain.AgeCategory(derefStr(r.AgeCategory)),
			SizeCategory: domain.SizeCategory(derefStr(r.SizeCategory)),
			RecencyScore: derefFloat(r.RecencyScore),
			SizePenalty:  derefFloat(r.SizePenalty),
		}
	}
	if r.GmailCategory != nil {
		m.Analysis.LabelClassifier = &domain.LabelClassifierResult{
			GmailCategory:    domain.GmailCategory(derefStr(r.GmailCategory)),
			SpamScore:        derefFloat(r.SpamScore),
			PromotionalScore: derefFloat(r.PromotionalScore),
			SocialScore:      derefFloat(r.SocialScore),
			Indicators:       parseJSONList(r.IndicatorsJSON),
		}
	}
	return m
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

const messageColumns = `user_id, message_id, thread_id, subject, sender, recipients_json, date, year,
	size_bytes, has_attachments, labels_json, snippet, archived, archive_date, archive_location,
	importance_score, importance_level, matched_rule_ids_json, importance_confidence,
	age_category, size_category, recency_score, size_penalty,
	gmail_category, spam_score, promotional_score, social_score, indicators_json,
	analysis_version, analysis_timestamp, created_at, updated_at`

// Upsert inserts a message or replaces it entirely. It is used by the
// indexing path (new message seen) and by the cleanup executor's Restore;
// analyzers write through the Update* partial updates instead.
func (d *MessageDAO) Upsert(ctx context.Context, m *domain.MessageIndex) error {
	m.UserID = d.userID
	r := toRow(m)
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (:user_id, :message_id, :thread_id, :subject, :sender, :recipients_json, :date, :year,
			:size_bytes, :has_attachments, :labels_json, :snippet, :archived, :archive_date, :archive_location,
			:importance_score, :importance_level, :matched_rule_ids_json, :importance_confidence,
			:age_category, :size_category, :recency_score, :size_penalty,
			:gmail_category, :spam_score, :promotional_score, :social_score, :indicators_json,
			:analysis_version, :analysis_timestamp, :created_at, :updated_at)
		ON CONFLICT (user_id, message_id) DO UPDATE SET
			thread_id=excluded.thread_id, subject=excluded.subject, sender=excluded.sender,
			recipients_json=excluded.recipients_json, date=excluded.date, year=excluded.year,
			size_bytes=excluded.size_bytes, has_attachments=excluded.has_attachments,
			labels_json=excluded.labels_json, snippet=excluded.snippet,
			archived=excluded.archived, archive_date=excluded.archive_date, archive_location=excluded.archive_location,
			importance_score=excluded.importance_score, importance_level=excluded.importance_level,
			matched_rule_ids_json=excluded.matched_rule_ids_json, importance_confidence=excluded.importance_confidence,
			age_category=excluded.age_category, size_category=excluded.size_category,
			recency_score=excluded.recency_score, size_penalty=excluded.size_penalty,
			gmail_category=excluded.gmail_category, spam_score=excluded.spam_score,
			promotional_score=excluded.promotional_score, social_score=excluded.social_score,
			indicators_json=excluded.indicators_json,
			analysis_version=excluded.analysis_version, analysis_timestamp=excluded.analysis_timestamp,
			updated_at=excluded.updated_at`, r)
	return mapErr("upsert message", err)
}

// UpdateImportance writes only the Importance analyzer's columns, leaving
// DateSize/LabelClassifier and every other field untouched, so concurrent
// analyzers never clobber each other.
func (d *MessageDAO) UpdateImportance(ctx context.Context, messageID string, res *domain.ImportanceResult, version int, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE messages SET importance_score=?, importance_level=?, matched_rule_ids_json=?,
			importance_confidence=?, analysis_version=?, analysis_timestamp=?, updated_at=?
		WHERE user_id=? AND message_id=?`,
		res.Score, string(res.Level), jsonList(res.MatchedRuleIDs), res.Confidence,
		version, at, at, d.userID, messageID)
	return mapErr("update importance", err)
}

// UpdateDateSize writes only the DateSize analyzer's columns.
func (d *MessageDAO) UpdateDateSize(ctx context.Context, messageID string, res *domain.DateSizeResult, version int, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE messages SET age_category=?, size_category=?, recency_score=?, size_penalty=?,
			analysis_version=?, analysis_timestamp=?, updated_at=?
		WHERE user_id=? AND message_id=?`,
		string(res.AgeCategory), string(res.SizeCategory), res.RecencyScore, res.SizePenalty,
		version, at, at, d.userID, messageID)
	return mapErr("update date_size", err)
}

// UpdateLabelClassifier writes only the LabelClassifier analyzer's columns.
func (d *MessageDAO) UpdateLabelClassifier(ctx context.Context, messageID string, res *domain.LabelClassifierResult, version int, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE messages SET gmail_category=?, spam_score=?, promotional_score=?, social_score=?, indicators_json=?,
			analysis_version=?, analysis_timestamp=?, updated_at=?
		WHERE user_id=? AND message_id=?`,
		string(res.GmailCategory), res.SpamScore, res.PromotionalScore, res.SocialScore, jsonList(res.Indicators),
		version, at, at, d.userID, messageID)
	return mapErr("update label_classifier", err)
}

func (d *MessageDAO) Get(ctx context.Context, messageID string) (*domain.MessageIndex, error) {
	var r messageRow
	err := d.db.GetContext(ctx, &r, `SELECT `+messageColumns+` FROM messages WHERE user_id=? AND message_id=?`, d.userID, messageID)
	if err != nil {
		return nil, mapErr("message", err)
	}
	return fromRow(&r), nil
}

// ListFilter narrows List to a subset of a user's indexed messages.
type ListFilter struct {
	Year            int  // 0 = any
	GmailCategory   string
	Archived        *bool
	RequireAnalyzed bool // only rows with analysis_version > 0
	Sender          string // substring match, case-insensitive
	SubjectOrSnippet string // substring match against subject OR snippet, case-insensitive
	Limit           int
	Offset          int
}

// List returns messages matching filter, ordered by date descending so the
// newest mail sorts first for every caller (categorization batches included).
func (d *MessageDAO) List(ctx context.Context, filter ListFilter) ([]*domain.MessageIndex, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE user_id = ?`
	args := []any{d.userID}

	if filter.Year != 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.GmailCategory != "" {
		query += ` AND gmail_category = ?`
		args = append(args, filter.GmailCategory)
	}
	if filter.Archived != nil {
		query += ` AND archived = ?`
		args = append(args, *filter.Archived)
	}
	if filter.RequireAnalyzed {
		query += ` AND analysis_version > 0`
	}
	if filter.Sender != "" {
		query += ` AND sender LIKE ? ESCAPE '\'`
		args = append(args, "%"+likeEscape(filter.Sender)+"%")
	}
	if filter.SubjectOrSnippet != "" {
		query += ` AND (subject LIKE ? ESCAPE '\' OR snippet LIKE ? ESCAPE '\')`
		needle := "%" + likeEscape(filter.SubjectOrSnippet) + "%"
		args = append(args, needle, needle)
	}
	query += ` ORDER BY date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	var rows []messageRow
	if err := d.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapErr("list messages", err)
	}
	out := make([]*domain.MessageIndex, len(rows))
	for i := range rows {
		out[i] = fromRow(&rows[i])
	}
	return out, nil
}

// likeEscape escapes the SQL LIKE wildcards % and _ so substring search
// treats user input literally rather than as a pattern.
func likeEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// MarkArchived flips a message's archived flag and records where it ended
// up, used by the cleanup executor after a successful archive-method run.
func (d *MessageDAO) MarkArchived(ctx context.Context, messageID, location string, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE messages SET archived=1, archive_date=?, archive_location=?, updated_at=? WHERE user_id=? AND message_id=?`,
		at, location, at, d.userID, messageID)
	return mapErr("mark archived", err)
}

// Delete removes a message row entirely, used after a delete-method
// cleanup action.
func (d *MessageDAO) Delete(ctx context.Context, messageID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id=? AND message_id=?`, d.userID, messageID)
	return mapErr("delete message", err)
}

// Count returns how many indexed messages this user has, honoring filter's
// Year, Archived and RequireAnalyzed fields; the other ListFilter fields are
// ignored.
func (d *MessageDAO) Count(ctx context.Context, filter ListFilter) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE user_id = ?`
	args := []any{d.userID}
	if filter.Year != 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.Archived != nil {
		query += ` AND archived = ?`
		args = append(args, *filter.Archived)
	}
	if filter.RequireAnalyzed {
		query += ` AND analysis_version > 0`
	}
	var n int
	if err := d.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, mapErr("count messages", err)
	}
	return n, nil
}
