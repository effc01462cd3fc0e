package domain

import "time"

// SearchCriteria is the filter set search_emails and a saved search both
// evaluate against a user's indexed messages. Zero values mean "no
// constraint", the same convention storage.ListFilter already uses.
type SearchCriteria struct {
	Query         string `json:"query,omitempty"`          // substring match against subject and snippet
	Sender        string `json:"sender,omitempty"`         // substring match against sender
	Year          int    `json:"year,omitempty"`
	GmailCategory string `json:"gmail_category,omitempty"`
	Archived      *bool  `json:"archived,omitempty"`
}

// SavedSearch is a named SearchCriteria a user has stored for reuse.
type SavedSearch struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Name      string         `json:"name" db:"name"`
	Criteria  SearchCriteria `json:"criteria" db:"-"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
