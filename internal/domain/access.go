package domain

import "time"

// AccessSummary tracks how a user has interacted with a message over time.
// It is updated only by AccessPatternTracker, never by an analyzer.
type AccessSummary struct {
	MessageID          string    `db:"message_id" json:"message_id"`
	TotalAccesses      int       `db:"total_accesses" json:"total_accesses"`
	LastAccessed       time.Time `db:"last_accessed" json:"last_accessed"`
	SearchAppearances  int       `db:"search_appearances" json:"search_appearances"`
	SearchInteractions int       `db:"search_interactions" json:"search_interactions"`
	// AccessScore is high when a message has NOT been accessed recently —
	// it feeds staleness, not popularity.
	AccessScore float64 `db:"access_score" json:"access_score"`
}

// AccessEvent is what AccessPatternTracker.Record consumes.
type AccessEvent struct {
	MessageID   string
	Kind        AccessEventKind
	OccurredAt  time.Time
}

// AccessEventKind distinguishes why a message was touched.
type AccessEventKind string

const (
	AccessEventOpen             AccessEventKind = "open"
	AccessEventSearchAppearance AccessEventKind = "search_appearance"
	AccessEventSearchInteraction AccessEventKind = "search_interaction"
)
