// Package executor takes the candidates the cleanup policy engine produced
// and actually moves mail, through
// MailProvider, chunked so one bad message never sinks an entire run.
package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"inboxguard/internal/cleanup"
	"inboxguard/internal/domain"
	"inboxguard/internal/export"
	"inboxguard/internal/mailprovider"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/ratelimit"
)

const DefaultChunkSize = 50

// maxChunkRetries bounds how many times a chunk's provider call is retried
// after a transient error before the chunk is recorded as failed.
const maxChunkRetries = 3

// chunkRetryBaseDelay is the first backoff sleep; it doubles on each
// subsequent retry (100ms, 200ms, 400ms).
const chunkRetryBaseDelay = 100 * time.Millisecond

// archiveLabels/trashLabels are the label deltas for each cleanup action:
// archive adds ARCHIVED and removes INBOX; a provider-method
// delete is implemented as a Gmail trash (TRASH added, INBOX removed)
// rather than MailProvider.Delete's irreversible hard delete — see
// DESIGN.md's Open Question resolution on executor delete semantics.
var (
	archiveAdd    = []string{"ARCHIVED"}
	archiveRemove = []string{"INBOX"}
	trashAdd      = []string{"TRASH"}
	trashRemove   = []string{"INBOX"}
)

// IDGenerator mints ArchiveRecord/FileMetadata ids; injected so the executor
// never has its own notion of identity generation.
type IDGenerator func() string

type Executor struct {
	provider mailprovider.Provider
	messages *storage.MessageDAO
	archive  *storage.ArchiveDAO
	files    *storage.FileDAO
	exporter *export.Writer
	newID    IDGenerator
	guard    *ratelimit.MemoryGuard
}

// NewExecutor builds an Executor. guard may be nil, in which case Execute
// falls back to whatever chunkSize its caller passes (or DefaultChunkSize).
func NewExecutor(provider mailprovider.Provider, messages *storage.MessageDAO, archive *storage.ArchiveDAO, files *storage.FileDAO, exporter *export.Writer, newID IDGenerator, guard *ratelimit.MemoryGuard) *Executor {
	return &Executor{provider: provider, messages: messages, archive: archive, files: files, exporter: exporter, newID: newID, guard: guard}
}

// ChunkOutcome is one chunk's result. Err is non-nil when the chunk failed:
// its export write, its provider call (after batchModifyWithRetry's retries
// of transient errors), or a store update failed. The executor records the
// error and moves on to the next chunk.
type ChunkOutcome struct {
	Action     domain.CleanupAction
	Method     domain.CleanupMethod
	MessageIDs []string
	Err        error
}

// Result is what one Execute call produced.
type Result struct {
	DryRun         bool
	PlannedArchive int
	PlannedDelete  int
	Chunks         []ChunkOutcome
	ArchiveRecords []*domain.ArchiveRecord
}

// Execute runs candidates (already capped by the winning policy's
// max_emails_per_run by the caller) through the provider in chunkSize
// batches, grouped by (action, method) so one provider call only ever mixes
// messages headed for the same outcome.
func (e *Executor) Execute(ctx context.Context, userID string, token *oauth2.Token, candidates []cleanup.Candidate, dryRun bool, chunkSize int, now time.Time) (*Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if e.guard != nil {
		chunkSize = e.guard.LimitPayloadSize(chunkSize)
	}

	result := &Result{DryRun: dryRun}
	groups := groupByActionMethod(candidates)

	for key, group := range groups {
		if key.Action == domain.ActionArchive {
			result.PlannedArchive += len(group)
		} else {
			result.PlannedDelete += len(group)
		}
	}
	if dryRun {
		return result, nil
	}

	for key, group := range groups {
		for start := 0; start < len(group); start += chunkSize {
			end := start + chunkSize
			if end > len(group) {
				end = len(group)
			}
			chunk := group[start:end]

			outcome, rec, err := e.runChunk(ctx, userID, token, key.Action, key.Method, chunk, now)
			result.Chunks = append(result.Chunks, outcome)
			if err == nil && rec != nil {
				result.ArchiveRecords = append(result.ArchiveRecords, rec)
			}
		}
	}

	return result, nil
}

type groupKey struct {
	Action domain.CleanupAction
	Method domain.CleanupMethod
}

func groupByActionMethod(candidates []cleanup.Candidate) map[groupKey][]cleanup.Candidate {
	groups := make(map[groupKey][]cleanup.Candidate)
	for _, c := range candidates {
		key := groupKey{Action: c.RecommendedAction, Method: c.Policy.Method}
		groups[key] = append(groups[key], c)
	}
	return groups
}

// runChunk performs one chunk's provider mutation and, on success, the
// corresponding store updates + ArchiveRecord. Transient provider errors are
// retried inside batchModifyWithRetry; a chunk that still fails is recorded
// on the returned ChunkOutcome and also returned as the error.
func (e *Executor) runChunk(ctx context.Context, userID string, token *oauth2.Token, action domain.CleanupAction, method domain.CleanupMethod, chunk []cleanup.Candidate, now time.Time) (ChunkOutcome, *domain.ArchiveRecord, error) {
	ids := make([]string, len(chunk))
	msgs := make([]*domain.MessageIndex, len(chunk))
	for i, c := range chunk {
		ids[i] = c.Message.MessageID
		msgs[i] = c.Message
	}
	outcome := ChunkOutcome{Action: action, Method: method, MessageIDs: ids}

	var location string
	var totalSize int64
	for _, m := range msgs {
		totalSize += m.SizeBytes
	}

	if method == domain.MethodExport {
		format := domain.ExportFormatJSON
		if len(chunk) > 0 && chunk[0].Policy.Safety.ExportFormat != nil {
			format = *chunk[0].Policy.Safety.ExportFormat
		}
		meta, err := e.exporter.Write(ctx, userID, format, msgs, now)
		if err != nil {
			outcome.Err = fmt.Errorf("export chunk: %w", err)
			return outcome, nil, outcome.Err
		}
		meta.ID = e.newID()
		if e.files != nil {
			if err := e.files.Create(ctx, meta); err != nil {
				outcome.Err = fmt.Errorf("persist export file: %w", err)
				return outcome, nil, outcome.Err
			}
		}
		location = meta.FilePath
	}

	add, remove := archiveAdd, archiveRemove
	if action == domain.ActionDelete {
		add, remove = trashAdd, trashRemove
	}
	if err := e.batchModifyWithRetry(ctx, token, mailprovider.BatchModifyRequest{MessageIDs: ids, AddLabels: add, RemoveLabels: remove}); err != nil {
		outcome.Err = fmt.Errorf("batch modify: %w", err)
		return outcome, nil, outcome.Err
	}

	for _, m := range msgs {
		if action == domain.ActionArchive {
			if err := e.messages.MarkArchived(ctx, m.MessageID, location, now); err != nil {
				outcome.Err = fmt.Errorf("mark archived %s: %w", m.MessageID, err)
				return outcome, nil, outcome.Err
			}
		} else {
			if err := e.messages.Delete(ctx, m.MessageID); err != nil {
				outcome.Err = fmt.Errorf("delete row %s: %w", m.MessageID, err)
				return outcome, nil, outcome.Err
			}
		}
	}

	rec := &domain.ArchiveRecord{
		ID:         e.newID(),
		UserID:     userID,
		MessageIDs: ids,
		Method:     method,
		Location:   location,
		SizeBytes:  totalSize,
		Restorable: action == domain.ActionArchive,
		CreatedAt:  now,
	}
	if e.archive != nil {
		if err := e.archive.CreateRecord(ctx, rec); err != nil {
			outcome.Err = fmt.Errorf("persist archive record: %w", err)
			return outcome, nil, outcome.Err
		}
	}

	return outcome, rec, nil
}

// batchModifyWithRetry calls BatchModify, retrying a transient provider
// error (rate limits, 5xx-equivalents — see mailprovider.wrapError) up to
// maxChunkRetries times with exponential backoff. A non-retryable error, or
// exhausting the retry bound, returns the last error unwrapped to the
// caller, which fails the chunk and moves on to the next one.
func (e *Executor) batchModifyWithRetry(ctx context.Context, token *oauth2.Token, req mailprovider.BatchModifyRequest) error {
	delay := chunkRetryBaseDelay
	var err error
	for attempt := 0; attempt <= maxChunkRetries; attempt++ {
		err = e.provider.BatchModify(ctx, token, req)
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) || attempt == maxChunkRetries {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

// Restore reverses an archive ArchiveRecord: removes ARCHIVED, re-adds
// restoreLabels (default INBOX), and clears the messages' archived state,
// preserving any other labels untouched (BatchModify only ever changes the
// labels it's told to).
func (e *Executor) Restore(ctx context.Context, token *oauth2.Token, rec *domain.ArchiveRecord, restoreLabels []string) error {
	if !rec.Restorable {
		return fmt.Errorf("archive record %s is not restorable", rec.ID)
	}
	if len(restoreLabels) == 0 {
		restoreLabels = []string{"INBOX"}
	}

	if err := e.provider.BatchModify(ctx, token, mailprovider.BatchModifyRequest{
		MessageIDs:   rec.MessageIDs,
		AddLabels:    restoreLabels,
		RemoveLabels: []string{"ARCHIVED"},
	}); err != nil {
		return fmt.Errorf("restore batch modify: %w", err)
	}

	for _, id := range rec.MessageIDs {
		msg, err := e.messages.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get message %s: %w", id, err)
		}
		msg.Archived = false
		msg.ArchiveDate = nil
		msg.ArchiveLocation = ""
		if err := e.messages.Upsert(ctx, msg); err != nil {
			return fmt.Errorf("restore message %s: %w", id, err)
		}
	}

	return e.archive.SetRestorable(ctx, rec.ID, false)
}
