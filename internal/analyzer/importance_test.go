package analyzer

import (
	"testing"
	"time"

	"inboxguard/internal/domain"
)

func TestImportanceWeightedSumAndLevels(t *testing.T) {
	cfg := DefaultImportanceConfig()
	cfg.Rules = []ImportanceRule{
		{ID: "vip-sender", Match: MatchSenderDomain("example.com"), Weight: 0.5},
		{ID: "urgent-subject", Match: MatchSubjectContains("urgent"), Weight: 0.4},
	}
	a := NewImportance(cfg, 0)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		in        Input
		wantLevel domain.ImportanceLevel
		wantRules int
	}{
		{
			name:      "no match is low",
			in:        Input{Sender: "nobody@other.org", Subject: "hi", Now: now, Date: now},
			wantLevel: domain.ImportanceLow,
			wantRules: 0,
		},
		{
			name:      "one rule is medium",
			in:        Input{Sender: "boss@example.com", Subject: "hi", Now: now, Date: now},
			wantLevel: domain.ImportanceMedium,
			wantRules: 1,
		},
		{
			name:      "both rules clip into high",
			in:        Input{Sender: "boss@example.com", Subject: "URGENT: respond", Now: now, Date: now},
			wantLevel: domain.ImportanceHigh,
			wantRules: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.in)
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %v, want %v (score=%v)", got.Level, tt.wantLevel, got.Score)
			}
			if len(got.MatchedRuleIDs) != tt.wantRules {
				t.Errorf("MatchedRuleIDs = %v, want %d entries", got.MatchedRuleIDs, tt.wantRules)
			}
		})
	}
}

func TestImportanceScoreIsClipped(t *testing.T) {
	cfg := DefaultImportanceConfig()
	cfg.Rules = []ImportanceRule{
		{ID: "a", Match: func(Input) bool { return true }, Weight: 0.8},
		{ID: "b", Match: func(Input) bool { return true }, Weight: 0.8},
	}
	a := NewImportance(cfg, 0)

	got := a.Analyze(Input{Sender: "x@y.com"})
	if got.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0 (clipped)", got.Score)
	}
}

func TestImportanceMemoizesByCanonicalKey(t *testing.T) {
	calls := 0
	cfg := DefaultImportanceConfig()
	cfg.Rules = []ImportanceRule{
		{ID: "counting", Match: func(Input) bool { calls++; return false }, Weight: 0.1},
	}
	a := NewImportance(cfg, 0)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := Input{Sender: "a@b.com", SizeBytes: 500, Date: now, Now: now}

	a.Analyze(in)
	a.Analyze(in)

	if calls != 1 {
		t.Errorf("expected the rule set to run once with memoization, ran %d times", calls)
	}
}
