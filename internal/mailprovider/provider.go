// Package mailprovider defines the opaque remote-mailbox adapter. The core
// never speaks a provider-specific dialect directly: every caller holds a
// Provider and an *oauth2.Token, nothing else.
package mailprovider

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Message is the metadata Provider.GetMessage/ListMessages returns. It
// carries only what the analyzers and categorization engine need — no full
// body, matching the no-full-message-bodies-stored boundary the rest of the
// service holds to.
type Message struct {
	ExternalID string
	ThreadID   string

	Subject string
	Snippet string
	From    Address
	To      []Address

	Date          time.Time
	SizeBytes     int64
	HasAttachment bool
	Labels        []string
}

// Address is a parsed "Name <email>" style header value.
type Address struct {
	Name  string
	Email string
}

// ListOptions scopes a ListMessages call.
type ListOptions struct {
	Query      string
	Labels     []string
	MaxResults int
	PageToken  string
}

// ListResult is one page of ListMessages.
type ListResult struct {
	Messages      []Message
	NextPageToken string
}

// ModifyRequest adds/removes labels on a single message.
type ModifyRequest struct {
	MessageID    string
	AddLabels    []string
	RemoveLabels []string
}

// BatchModifyRequest adds/removes labels on many messages in one remote
// call. The contract is idempotent on label sets: re-applying the same
// add/remove set against a message already in that state is a no-op, never
// an error.
type BatchModifyRequest struct {
	MessageIDs   []string
	AddLabels    []string
	RemoveLabels []string
}

// Label is one Gmail-style label/folder.
type Label struct {
	ID             string
	Name           string
	Type           string
	MessagesTotal  int64
	MessagesUnread int64
}

// Provider is the opaque per-session handle to a remote mailbox. Every
// method takes the caller's token explicitly rather than holding one —
// callers are multi-user, and a provider instance is shared across users'
// calls rather than constructed per-user.
type Provider interface {
	// GetMessage fetches one message's metadata.
	GetMessage(ctx context.Context, token *oauth2.Token, externalID string) (*Message, error)

	// ListMessages fetches a page of message metadata matching opts.
	ListMessages(ctx context.Context, token *oauth2.Token, opts ListOptions) (*ListResult, error)

	// Modify adds/removes labels on one message. Idempotent on label sets.
	Modify(ctx context.Context, token *oauth2.Token, req ModifyRequest) error

	// BatchModify adds/removes labels on many messages in one remote call.
	// Used by CleanupExecutor for archive (add ARCHIVED, remove INBOX) and
	// for trash-method delete.
	BatchModify(ctx context.Context, token *oauth2.Token, req BatchModifyRequest) error

	// Delete permanently removes one message (method=delete, as opposed to
	// archive/trash). Not idempotent: a second call against an
	// already-deleted id returns NotFound.
	Delete(ctx context.Context, token *oauth2.Token, externalID string) error

	// PurgeTrash permanently deletes everything currently in Trash. A
	// distinct operation from Delete, with its own idempotency contract: an
	// empty trash is a successful no-op, never an error.
	PurgeTrash(ctx context.Context, token *oauth2.Token) (purged int, err error)

	// ListLabels lists the mailbox's labels/folders.
	ListLabels(ctx context.Context, token *oauth2.Token) ([]Label, error)
}
