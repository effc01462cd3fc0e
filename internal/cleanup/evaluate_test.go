package cleanup

import (
	"context"
	"testing"
	"time"

	"inboxguard/internal/domain"
	"inboxguard/internal/staleness"
)

func ptrInt(i int) *int           { return &i }
func ptrFloat(f float64) *float64 { return &f }

func oldMessage(id string) *domain.MessageIndex {
	return &domain.MessageIndex{
		MessageID: id,
		Sender:    "noreply@coupons.example.com",
		Subject:   "50% off everything",
		Labels:    []string{"CATEGORY_PROMOTIONS"},
		SizeBytes: 10_000,
		Date:      time.Now().Add(-400 * 24 * time.Hour),
		Analysis: domain.AnalyzerResult{
			// RecencyScore 0 matches the 400-day-old Date above.
			DateSize:        &domain.DateSizeResult{RecencyScore: 0},
			Importance:      &domain.ImportanceResult{Score: 0.1, Level: domain.ImportanceLow},
			LabelClassifier: &domain.LabelClassifierResult{SpamScore: 0.8, GmailCategory: domain.CategoryPromotions},
		},
	}
}

func runEval(msgs []EvaluateInput, policies []*domain.CleanupPolicy) *Result {
	cfg := domain.DefaultSafetyConfig()
	cfg.ConsumerMailDomains = []string{"coupons.example.com"}
	return EvaluateForCleanup(
		context.Background(),
		msgs,
		policies,
		cfg,
		domain.NewSafetyMetrics(),
		domain.DefaultStalenessWeights(),
		staleness.DefaultThresholds(),
		time.Now(),
	)
}

func TestEvaluateRecentMessageProtectedRegardlessOfPolicy(t *testing.T) {
	msg := oldMessage("m1")
	msg.Date = time.Now().Add(-1 * 24 * time.Hour)

	policy := &domain.CleanupPolicy{ID: "p1", Enabled: true, Action: domain.ActionDelete, Method: domain.MethodProvider,
		Criteria: domain.PolicyCriteria{AgeDaysMin: ptrInt(0)}}

	got := runEval([]EvaluateInput{{Message: msg}}, []*domain.CleanupPolicy{policy})
	if len(got.ProtectedEmails) != 1 || got.ProtectedEmails[0].Reason != "too recent" {
		t.Fatalf("expected 'too recent' protection, got %+v", got)
	}
}

func TestEvaluatePreserveImportantPreFiltersAcrossAllPolicies(t *testing.T) {
	msg := oldMessage("m1")
	msg.Analysis.Importance = &domain.ImportanceResult{Score: 0.9, Level: domain.ImportanceHigh}

	preserving := &domain.CleanupPolicy{ID: "p1", Enabled: true, Priority: 10, Action: domain.ActionDelete, Method: domain.MethodProvider,
		Safety:   domain.SafetyOverrides{PreserveImportant: boolPtr(true)},
		Criteria: domain.PolicyCriteria{},
	}
	matching := &domain.CleanupPolicy{ID: "p2", Enabled: true, Priority: 100, Action: domain.ActionDelete, Method: domain.MethodProvider,
		Criteria: domain.PolicyCriteria{AgeDaysMin: ptrInt(0)},
	}

	got := runEval([]EvaluateInput{{Message: msg}}, []*domain.CleanupPolicy{matching, preserving})
	if len(got.ProtectedEmails) != 1 || got.ProtectedEmails[0].Reason != "policy configured to preserve important emails" {
		t.Fatalf("expected preserve-important protection even though a higher priority policy matched criteria, got %+v", got)
	}
}

func TestEvaluateFirstMatchingAndSafePolicyWins(t *testing.T) {
	msg := oldMessage("m1")

	low := &domain.CleanupPolicy{ID: "low", Enabled: true, Priority: 1, Action: domain.ActionArchive, Method: domain.MethodProvider,
		Criteria: domain.PolicyCriteria{AgeDaysMin: ptrInt(0)}}
	high := &domain.CleanupPolicy{ID: "high", Enabled: true, Priority: 100, Action: domain.ActionDelete, Method: domain.MethodProvider,
		Criteria: domain.PolicyCriteria{AgeDaysMin: ptrInt(0)}}

	got := runEval([]EvaluateInput{{Message: msg}}, []*domain.CleanupPolicy{high, low})
	if len(got.CleanupCandidates) != 1 || got.CleanupCandidates[0].Policy.ID != "high" {
		t.Fatalf("expected the higher priority policy to win, got %+v", got)
	}
	if got.Summary.Candidates != 1 || got.Summary.PoliciesApplied != 1 {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
}

func TestEvaluateCriteriaMismatchFallsThroughToNoApplicablePolicy(t *testing.T) {
	msg := oldMessage("m1")

	policy := &domain.CleanupPolicy{ID: "p1", Enabled: true, Priority: 10, Action: domain.ActionDelete, Method: domain.MethodProvider,
		Criteria: domain.PolicyCriteria{SpamScoreMin: ptrFloat(0.99)}}

	got := runEval([]EvaluateInput{{Message: msg}}, []*domain.CleanupPolicy{policy})
	if len(got.ProtectedEmails) != 1 || got.ProtectedEmails[0].Reason != "no applicable policy" {
		t.Fatalf("expected 'no applicable policy', got %+v", got)
	}
}

func TestEvaluateMatchingButUnsafeUsesFailureReason(t *testing.T) {
	msg := oldMessage("m1")
	msg.HasAttachments = true // trips attachment_safety, always protects

	policy := &domain.CleanupPolicy{ID: "p1", Enabled: true, Priority: 10, Action: domain.ActionDelete, Method: domain.MethodProvider,
		Criteria: domain.PolicyCriteria{AgeDaysMin: ptrInt(0)}}

	got := runEval([]EvaluateInput{{Message: msg}}, []*domain.CleanupPolicy{policy})
	if len(got.ProtectedEmails) != 1 {
		t.Fatalf("expected one protected email, got %+v", got)
	}
	if got.ProtectedEmails[0].Reason == "no applicable policy" {
		t.Fatalf("expected the safety checklist's failure reason, not the fallback, got %+v", got.ProtectedEmails[0])
	}
}

func boolPtr(b bool) *bool { return &b }
