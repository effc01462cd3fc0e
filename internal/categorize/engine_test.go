package categorize

import (
	"context"
	"testing"
	"time"

	"inboxguard/config"
	"inboxguard/internal/analyzer"
	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.MessageDAO) {
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

	eng := NewEngine(
		analyzer.NewImportance(analyzer.DefaultImportanceConfig(), 64),
		analyzer.NewDateSize(analyzer.DefaultDateSizeConfig()),
		analyzer.NewLabelClassifier(analyzer.DefaultLabelClassifierConfig(), 64),
	)
	return eng, store.Messages()
}

func seedMessage(t *testing.T, messages *storage.MessageDAO, id string, date time.Time) {
	t.Helper()
	err := messages.Upsert(context.Background(), &domain.MessageIndex{
		MessageID: id,
		Sender:    "newsletter@example.com",
		Subject:   "weekly digest",
		Labels:    []string{"CATEGORY_PROMOTIONS"},
		SizeBytes: 20_000,
		Date:      date,
	})
	if err != nil {
		t.Fatalf("seed message %s: %v", id, err)
	}
}

func TestRunAnalyzesAllUnanalyzedMessages(t *testing.T) {
	eng, messages := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	seedMessage(t, messages, "m1", now.Add(-48*time.Hour))
	seedMessage(t, messages, "m2", now.Add(-200*24*time.Hour))

	var reports [][2]int
	analyzed, err := eng.Run(ctx, messages, Request{}, now, func(a, total int) {
		reports = append(reports, [2]int{a, total})
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if analyzed != 2 {
		t.Fatalf("analyzed = %d, want 2", analyzed)
	}
	if len(reports) != 1 || reports[0] != [2]int{2, 2} {
		t.Errorf("progress reports = %v, want one [2 2] report", reports)
	}

	m1, err := messages.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get m1: %v", err)
	}
	if m1.Analysis.Importance == nil || m1.Analysis.DateSize == nil || m1.Analysis.LabelClassifier == nil {
		t.Fatalf("m1 analysis incomplete: %+v", m1.Analysis)
	}
	if m1.Analysis.AnalysisVersion != EngineVersion {
		t.Errorf("AnalysisVersion = %d, want %d", m1.Analysis.AnalysisVersion, EngineVersion)
	}
	if m1.Archived {
		t.Error("Run must never set Archived")
	}
}

func TestRunSkipsAlreadyAnalyzedUnlessForceRefresh(t *testing.T) {
	eng, messages := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	seedMessage(t, messages, "m1", now)
	if _, err := eng.Run(ctx, messages, Request{}, now, nil); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	analyzed, err := eng.Run(ctx, messages, Request{}, now.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if analyzed != 0 {
		t.Errorf("second Run analyzed = %d, want 0 (already analyzed, no force_refresh)", analyzed)
	}

	analyzed, err = eng.Run(ctx, messages, Request{ForceRefresh: true}, now.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("force_refresh Run: %v", err)
	}
	if analyzed != 1 {
		t.Errorf("force_refresh Run analyzed = %d, want 1", analyzed)
	}
}

func TestRunSelectionByExplicitIDs(t *testing.T) {
	eng, messages := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	seedMessage(t, messages, "m1", now)
	seedMessage(t, messages, "m2", now)

	analyzed, err := eng.Run(ctx, messages, Request{Selection: Selection{MessageIDs: []string{"m2"}}}, now, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if analyzed != 1 {
		t.Fatalf("analyzed = %d, want 1", analyzed)
	}

	m1, err := messages.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get m1: %v", err)
	}
	if m1.Analysis.Importance != nil {
		t.Error("m1 was not in the selection and must remain unanalyzed")
	}
}

func TestRunBatchesProgressReports(t *testing.T) {
	eng, messages := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		seedMessage(t, messages, string(rune('a'+i)), now)
	}

	var reports [][2]int
	analyzed, err := eng.Run(ctx, messages, Request{BatchSize: 2}, now, func(a, total int) {
		reports = append(reports, [2]int{a, total})
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if analyzed != 5 {
		t.Fatalf("analyzed = %d, want 5", analyzed)
	}
	if len(reports) != 3 {
		t.Fatalf("progress reports = %v, want 3 batches (2,2,1)", reports)
	}
	last := reports[len(reports)-1]
	if last != [2]int{5, 5} {
		t.Errorf("final report = %v, want [5 5]", last)
	}
}
