package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"inboxguard/config"
	"inboxguard/internal/cleanup"
	"inboxguard/internal/domain"
	"inboxguard/internal/export"
	"inboxguard/internal/mailprovider"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/ratelimit"
)

func newTestExecutor(t *testing.T) (*Executor, *storage.MessageDAO, *storage.ArchiveDAO, *mailprovider.FakeProvider) {
	t.Helper()
	cfg := &config.Config{DataRoot: t.TempDir()}
	factory, err := storage.NewFactory(cfg)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	t.Cleanup(func() { factory.Close() })

	store, err := factory.Get(context.Background(), "testuser")
	if err != nil {
		t.Fatalf("factory.Get: %v", err)
	}

	provider := mailprovider.NewFakeProvider()
	writer := export.NewWriter(t.TempDir())

	nextID := 0
	idGen := func() string {
		nextID++
		return "id" + string(rune('0'+nextID))
	}

	guard := ratelimit.NewMemoryGuard(DefaultChunkSize)
	exec := NewExecutor(provider, store.Messages(), store.Archive(), store.Files(), writer, idGen, guard)
	return exec, store.Messages(), store.Archive(), provider
}

func seedCandidate(t *testing.T, messages *storage.MessageDAO, id string, action domain.CleanupAction, method domain.CleanupMethod) cleanup.Candidate {
	t.Helper()
	msg := &domain.MessageIndex{
		MessageID: id,
		Subject:   "test",
		Sender:    "a@example.com",
		Date:      time.Now().Add(-100 * 24 * time.Hour),
		Labels:    []string{"INBOX"},
	}
	if err := messages.Upsert(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return cleanup.Candidate{
		Message:           msg,
		Policy:            &domain.CleanupPolicy{ID: "p1", Action: action, Method: method},
		RecommendedAction: action,
	}
}

func TestExecuteDryRunDoesNotMutate(t *testing.T) {
	exec, messages, _, provider := newTestExecutor(t)
	cand := seedCandidate(t, messages, "m1", domain.ActionArchive, domain.MethodProvider)

	result, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{cand}, true, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.PlannedArchive != 1 || len(result.Chunks) != 0 {
		t.Fatalf("unexpected dry run result: %+v", result)
	}
	if len(provider.Calls) != 0 {
		t.Fatalf("dry run must not call the provider, got calls: %v", provider.Calls)
	}

	msg, err := messages.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if msg.Archived {
		t.Fatalf("dry run must not archive the message")
	}
}

func TestExecuteArchiveUpdatesStoreAndRecord(t *testing.T) {
	exec, messages, archiveDAO, provider := newTestExecutor(t)
	provider.Put(mailprovider.Message{ExternalID: "m1", Labels: []string{"INBOX"}})
	cand := seedCandidate(t, messages, "m1", domain.ActionArchive, domain.MethodProvider)

	result, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{cand}, false, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Err != nil {
		t.Fatalf("unexpected chunk result: %+v", result.Chunks)
	}
	if len(result.ArchiveRecords) != 1 {
		t.Fatalf("expected one archive record, got %d", len(result.ArchiveRecords))
	}

	msg, err := messages.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !msg.Archived {
		t.Fatalf("expected message archived")
	}

	rec, err := archiveDAO.GetRecord(context.Background(), result.ArchiveRecords[0].ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !rec.Restorable {
		t.Fatalf("expected archive record restorable")
	}
}

func TestExecuteRetriesTransientProviderErrorThenSucceeds(t *testing.T) {
	exec, messages, _, provider := newTestExecutor(t)
	provider.Put(mailprovider.Message{ExternalID: "m1", Labels: []string{"INBOX"}})
	cand := seedCandidate(t, messages, "m1", domain.ActionArchive, domain.MethodProvider)

	provider.FailBatchModifyTimes = 2
	provider.FailBatchModifyErr = apperr.Transient("gmail", errors.New("rate limited"))

	result, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{cand}, false, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Err != nil {
		t.Fatalf("expected chunk to eventually succeed, got: %+v", result.Chunks)
	}

	msg, err := messages.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !msg.Archived {
		t.Fatalf("expected message archived after retry succeeded")
	}
}

func TestExecuteGivesUpAfterMaxRetriesOnTransientError(t *testing.T) {
	exec, messages, _, provider := newTestExecutor(t)
	provider.Put(mailprovider.Message{ExternalID: "m1", Labels: []string{"INBOX"}})
	cand := seedCandidate(t, messages, "m1", domain.ActionArchive, domain.MethodProvider)

	provider.FailBatchModifyTimes = maxChunkRetries + 1
	provider.FailBatchModifyErr = apperr.Transient("gmail", errors.New("still rate limited"))

	result, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{cand}, false, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Err == nil {
		t.Fatalf("expected chunk to fail after exhausting retries, got: %+v", result.Chunks)
	}

	msg, err := messages.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if msg.Archived {
		t.Fatalf("message must not be marked archived when the chunk ultimately failed")
	}
}

func TestExecuteDoesNotRetryNonRetryableError(t *testing.T) {
	exec, messages, _, provider := newTestExecutor(t)
	provider.Put(mailprovider.Message{ExternalID: "m1", Labels: []string{"INBOX"}})
	cand := seedCandidate(t, messages, "m1", domain.ActionArchive, domain.MethodProvider)

	provider.FailBatchModifyTimes = 1
	provider.FailBatchModifyErr = apperr.Forbidden("access revoked")

	result, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{cand}, false, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Err == nil {
		t.Fatalf("expected chunk to fail immediately, got: %+v", result.Chunks)
	}
	batchModifyCalls := 0
	for _, c := range provider.Calls {
		if c == "BatchModify" {
			batchModifyCalls++
		}
	}
	if batchModifyCalls != 1 {
		t.Fatalf("expected exactly one BatchModify attempt for a non-retryable error, got %d", batchModifyCalls)
	}
}

func TestExecuteDeleteRemovesMessageRow(t *testing.T) {
	exec, messages, _, provider := newTestExecutor(t)
	provider.Put(mailprovider.Message{ExternalID: "m1", Labels: []string{"INBOX"}})
	cand := seedCandidate(t, messages, "m1", domain.ActionDelete, domain.MethodProvider)

	_, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{cand}, false, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := messages.Get(context.Background(), "m1"); err == nil {
		t.Fatalf("expected message row deleted")
	}
}

func TestExecuteRestoreReversesArchive(t *testing.T) {
	exec, messages, archiveDAO, provider := newTestExecutor(t)
	provider.Put(mailprovider.Message{ExternalID: "m1", Labels: []string{"INBOX"}})
	cand := seedCandidate(t, messages, "m1", domain.ActionArchive, domain.MethodProvider)

	result, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{cand}, false, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rec := result.ArchiveRecords[0]

	if err := exec.Restore(context.Background(), &oauth2.Token{}, rec, nil); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	msg, err := messages.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if msg.Archived {
		t.Fatalf("expected message un-archived after restore")
	}

	got, err := archiveDAO.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Restorable {
		t.Fatalf("expected record no longer restorable after a restore")
	}
}

func TestExecuteGroupsByActionMethodSeparately(t *testing.T) {
	exec, messages, _, _ := newTestExecutor(t)
	archiveCand := seedCandidate(t, messages, "m1", domain.ActionArchive, domain.MethodProvider)
	deleteCand := seedCandidate(t, messages, "m2", domain.ActionDelete, domain.MethodProvider)

	result, err := exec.Execute(context.Background(), "testuser", &oauth2.Token{}, []cleanup.Candidate{archiveCand, deleteCand}, false, 10, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Chunks) != 2 {
		t.Fatalf("expected two separate chunks (one per action), got %d", len(result.Chunks))
	}
}
