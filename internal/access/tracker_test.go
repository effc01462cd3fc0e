package access

import (
	"context"
	"testing"
	"time"

	"inboxguard/config"
	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
)

func newTestTracker(t *testing.T) (*Tracker, *storage.AccessDAO) {
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

	dao := store.Access()
	return NewTracker(dao, DefaultScoreConfig()), dao
}

func TestRecordFirstAccessScoresZero(t *testing.T) {
	tr, dao := newTestTracker(t)
	ctx := context.Background()

	now := time.Now()
	err := tr.Record(ctx, &domain.AccessEvent{MessageID: "m1", Kind: domain.AccessEventOpen, OccurredAt: now})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	summary, err := dao.GetSummary(ctx, "m1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalAccesses != 1 {
		t.Errorf("TotalAccesses = %d, want 1", summary.TotalAccesses)
	}
	// Just accessed: daysSince == 0, so ceiling == 0 regardless of decay.
	if summary.AccessScore != 0 {
		t.Errorf("AccessScore = %v, want 0 immediately after access", summary.AccessScore)
	}
}

func TestScoreSaturatesAfterSilence(t *testing.T) {
	tr, _ := newTestTracker(t)

	summary := &domain.AccessSummary{
		MessageID:     "m2",
		LastAccessed:  time.Now().Add(-200 * 24 * time.Hour),
		TotalAccesses: 1,
	}
	got := tr.Score(summary, time.Now())
	if got != 1.0*(1-0.02) {
		t.Errorf("Score = %v, want saturated ceiling discounted by one access (%v)", got, 1.0*(1-0.02))
	}
}

func TestScoreDecayCapsAtMaxDecay(t *testing.T) {
	tr, _ := newTestTracker(t)

	summary := &domain.AccessSummary{
		MessageID:     "m3",
		LastAccessed:  time.Now().Add(-200 * 24 * time.Hour),
		TotalAccesses: 1000, // would blow past MaxDecay without the cap
	}
	got := tr.Score(summary, time.Now())
	want := 1.0 * (1 - DefaultScoreConfig().MaxDecay)
	if got != want {
		t.Errorf("Score = %v, want %v (decay capped at MaxDecay)", got, want)
	}
}

func TestScoreNeverAccessedIsMaximallyStale(t *testing.T) {
	tr, _ := newTestTracker(t)
	summary := &domain.AccessSummary{MessageID: "m4"}
	if got := tr.Score(summary, time.Now()); got != 1.0 {
		t.Errorf("Score = %v, want 1.0 for a never-accessed message", got)
	}
}

func TestRecordIncrementsSearchCounters(t *testing.T) {
	tr, dao := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Record(ctx, &domain.AccessEvent{MessageID: "m5", Kind: domain.AccessEventSearchAppearance}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tr.Record(ctx, &domain.AccessEvent{MessageID: "m5", Kind: domain.AccessEventSearchInteraction}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	summary, err := dao.GetSummary(ctx, "m5")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.SearchAppearances != 1 || summary.SearchInteractions != 1 {
		t.Errorf("got SearchAppearances=%d SearchInteractions=%d, want 1/1", summary.SearchAppearances, summary.SearchInteractions)
	}
	if summary.TotalAccesses != 2 {
		t.Errorf("TotalAccesses = %d, want 2", summary.TotalAccesses)
	}
}
