package safety

import (
	"testing"

	"inboxguard/internal/domain"
)

func baseInput() Input {
	return Input{
		Sender:          "noreply@coupons.example.com",
		SenderDomain:    "coupons.example.com",
		Subject:         "50% off everything",
		Labels:          []string{"CATEGORY_PROMOTIONS"},
		SizeBytes:       10_000,
		AgeDays:         400,
		ImportanceScore: 0.1,
		StalenessTotal:  0.9,
		StalenessAccess: 0.9,
	}
}

func TestEvaluateSafeMessagePassesEveryCheck(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.ConsumerMailDomains = []string{"coupons.example.com"}
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	got := checker.Evaluate(baseInput(), Counters{})
	if !got.Safe {
		t.Fatalf("expected safe, got protected: %+v", got)
	}
}

func TestBatchLimitsShortCircuitsFirst(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.MaxDeletionsPerHour = 5
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	got := checker.Evaluate(baseInput(), Counters{DeletionsThisHour: 5})
	if got.Safe || got.CheckType != domain.CheckBatchLimits {
		t.Fatalf("expected batch_limits protection, got %+v", got)
	}
}

func TestDomainProtectionSeverities(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.VIPDomains = []string{"vip.example.com"}
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.SenderDomain = "vip.example.com"
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.CheckType != domain.CheckDomainProtection || got.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical domain_protection, got %+v", got)
	}
}

func TestVIPExecutiveTokenMatch(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.SenderDomain = "corp.example.com"
	in.Subject = "Message from the CEO"
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.CheckType != domain.CheckVIPExecutive {
		t.Fatalf("expected vip_executive protection, got %+v", got)
	}
}

func TestLabelSafetyCriticalBeatsProtected(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.CriticalLabels = []string{"LEGAL_HOLD"}
	cfg.ProtectedLabels = []string{"LEGAL_HOLD"} // overlapping config, critical must still win
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.Labels = []string{"LEGAL_HOLD"}
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical label_safety, got %+v", got)
	}
}

func TestAttachmentSafetyAlwaysProtects(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.SenderDomain = "corp.example.com" // avoid tripping domain checks first
	in.HasAttachments = true
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.CheckType != domain.CheckAttachmentSafety {
		t.Fatalf("expected attachment_safety protection, got %+v", got)
	}
}

func TestThreadSafetyProtectsActiveThreads(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.ConsumerMailDomains = []string{"coupons.example.com"}
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.ThreadID = "t1"
	in.AgeDays = 1
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.CheckType != domain.CheckThreadSafety {
		t.Fatalf("expected thread_safety protection, got %+v", got)
	}
}

func TestUnreadProtectionRecentUnread(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.ConsumerMailDomains = []string{"coupons.example.com"}
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.Labels = []string{"UNREAD"}
	in.AgeDays = 1
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.CheckType != domain.CheckUnreadProtection || got.Severity != domain.SeverityHigh {
		t.Fatalf("expected high unread_protection, got %+v", got)
	}
}

func TestSizeAnomalyLargeThreshold(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.ConsumerMailDomains = []string{"coupons.example.com"}
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.SizeBytes = cfg.LargeEmailThreshold
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.CheckType != domain.CheckSizeAnomaly {
		t.Fatalf("expected size_anomaly protection, got %+v", got)
	}
}

func TestStalenessAccessRequiresBothThresholds(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.ConsumerMailDomains = []string{"coupons.example.com"}
	checker := NewChecker(cfg, domain.NewSafetyMetrics())

	in := baseInput()
	in.StalenessTotal = 0.9
	in.StalenessAccess = 0.1 // below MaxAccessScore
	got := checker.Evaluate(in, Counters{})
	if got.Safe || got.CheckType != domain.CheckStalenessAccess {
		t.Fatalf("expected staleness_access protection, got %+v", got)
	}
}

func TestMetricsRecordEveryCheck(t *testing.T) {
	cfg := domain.DefaultSafetyConfig()
	cfg.MaxDeletionsPerHour = 1
	metrics := domain.NewSafetyMetrics()
	checker := NewChecker(cfg, metrics)

	checker.Evaluate(baseInput(), Counters{DeletionsThisHour: 1})
	snap := metrics.Snapshot()
	if snap.TotalChecks != 1 || snap.ProtectedEmails != 1 {
		t.Fatalf("snapshot = %+v, want 1 check / 1 protected", snap)
	}
	if snap.ByCheckType[domain.CheckBatchLimits] != 1 {
		t.Fatalf("ByCheckType = %v, want batch_limits=1", snap.ByCheckType)
	}
}
