package cleanup

import (
	"context"
	"time"

	"inboxguard/internal/cleanup/safety"
	"inboxguard/internal/domain"
	"inboxguard/internal/staleness"
)

// Candidate is one message EvaluateForCleanup recommends acting on.
type Candidate struct {
	Message           *domain.MessageIndex
	Policy            *domain.CleanupPolicy
	StalenessScore    domain.StalenessScore
	RecommendedAction domain.CleanupAction
}

// Protected is one message EvaluateForCleanup declined to act on.
type Protected struct {
	Message *domain.MessageIndex
	Reason  string
}

// Summary is the aggregate evaluation_summary output.
type Summary struct {
	Total           int
	Candidates      int
	Protected       int
	PoliciesApplied int
}

// Result is evaluate_emails_for_cleanup's full output.
type Result struct {
	CleanupCandidates []Candidate
	ProtectedEmails   []Protected
	Summary           Summary
}

// EvaluateInput bundles everything EvaluateForCleanup needs about one
// message beyond the MessageIndex row itself.
type EvaluateInput struct {
	Message *domain.MessageIndex
	Access  *domain.AccessSummary // nil if never accessed
}

// EvaluateForCleanup runs the policy matching algorithm over in, against
// policies (assumed already priority-sorted, e.g. via
// storage.PolicyDAO.ListEnabled) and the safety checklist built from
// safetyCfg. now anchors every age computation to one instant.
func EvaluateForCleanup(
	ctx context.Context,
	in []EvaluateInput,
	policies []*domain.CleanupPolicy,
	safetyCfg *domain.SafetyConfig,
	metrics *domain.SafetyMetrics,
	weights domain.StalenessWeights,
	th staleness.Thresholds,
	now time.Time,
) *Result {
	if safetyCfg == nil {
		safetyCfg = domain.DefaultSafetyConfig()
	}
	checker := safety.NewChecker(safetyCfg, metrics)
	avgSize := averageSize(in)

	result := &Result{Summary: Summary{Total: len(in)}}
	appliedPolicies := make(map[string]bool)

	for _, item := range in {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		msg := item.Message
		ageDays := int(now.Sub(msg.Date).Hours() / 24)

		if ageDays < safetyCfg.RecentAccessDays {
			result.ProtectedEmails = append(result.ProtectedEmails, Protected{Message: msg, Reason: "too recent"})
			result.Summary.Protected++
			continue
		}

		if isImportant(msg) {
			if p := firstPreservingPolicy(policies); p != nil {
				result.ProtectedEmails = append(result.ProtectedEmails, Protected{
					Message: msg,
					Reason:  "policy configured to preserve important emails",
				})
				result.Summary.Protected++
				continue
			}
		}

		sScore := staleness.Score(staleness.FactorsFrom(&msg.Analysis, item.Access), weights, th)

		var winner *domain.CleanupPolicy
		firstSafetyFailure := ""
		for _, p := range policies {
			if !p.Enabled {
				continue
			}
			if !matchesCriteria(p.Criteria, msg, item.Access, now) {
				continue
			}

			safetyIn := buildSafetyInput(msg, item.Access, ageDays, avgSize, sScore)
			check := checker.Evaluate(safetyIn, Counters{})
			if check.Safe {
				winner = p
				break
			}
			if firstSafetyFailure == "" {
				firstSafetyFailure = check.Reason
			}
		}

		if winner == nil {
			reason := firstSafetyFailure
			if reason == "" {
				reason = "no applicable policy"
			}
			result.ProtectedEmails = append(result.ProtectedEmails, Protected{Message: msg, Reason: reason})
			result.Summary.Protected++
			continue
		}

		appliedPolicies[winner.ID] = true
		result.CleanupCandidates = append(result.CleanupCandidates, Candidate{
			Message:           msg,
			Policy:            winner,
			StalenessScore:    sScore,
			RecommendedAction: winner.Action,
		})
		result.Summary.Candidates++
	}

	result.Summary.PoliciesApplied = len(appliedPolicies)
	return result
}

// Counters is re-exported from safety so callers of this package don't need
// a second import just to pass an empty Counters value.
type Counters = safety.Counters

// isImportant reports whether msg qualifies as "important" for the
// preserve-important pre-filter: GmailCategory important, or
// ImportanceLevel high. A numeric "importance_score > 5" branch left over
// from a 0-10 scale that predates this 0..1 score is intentionally omitted,
// since it can never trigger against our [0,1]-scaled Importance.Score
// (documented in DESIGN.md).
func isImportant(msg *domain.MessageIndex) bool {
	if msg.Analysis.LabelClassifier != nil && msg.Analysis.LabelClassifier.GmailCategory == domain.CategoryImportant {
		return true
	}
	if msg.Analysis.Importance != nil && msg.Analysis.Importance.Level == domain.ImportanceHigh {
		return true
	}
	return false
}

func firstPreservingPolicy(policies []*domain.CleanupPolicy) *domain.CleanupPolicy {
	for _, p := range policies {
		if p.Enabled && p.PreservesImportant() {
			return p
		}
	}
	return nil
}

var importanceRank = map[domain.ImportanceLevel]int{
	domain.ImportanceLow:    0,
	domain.ImportanceMedium: 1,
	domain.ImportanceHigh:   2,
}

// matchesCriteria tests PolicyCriteria conjunctively: every non-nil field
// must match.
func matchesCriteria(c domain.PolicyCriteria, msg *domain.MessageIndex, access *domain.AccessSummary, now time.Time) bool {
	ageDays := int(now.Sub(msg.Date).Hours() / 24)

	if c.AgeDaysMin != nil && ageDays < *c.AgeDaysMin {
		return false
	}
	if c.ImportanceLevelMax != nil {
		level := domain.ImportanceLow
		if msg.Analysis.Importance != nil {
			level = msg.Analysis.Importance.Level
		}
		if importanceRank[level] > importanceRank[*c.ImportanceLevelMax] {
			return false
		}
	}
	if c.SizeThresholdMin != nil && msg.SizeBytes < *c.SizeThresholdMin {
		return false
	}
	if c.SpamScoreMin != nil {
		spam := 0.0
		if msg.Analysis.LabelClassifier != nil {
			spam = msg.Analysis.LabelClassifier.SpamScore
		}
		if spam < *c.SpamScoreMin {
			return false
		}
	}
	if c.PromotionalScoreMin != nil {
		promo := 0.0
		if msg.Analysis.LabelClassifier != nil {
			promo = msg.Analysis.LabelClassifier.PromotionalScore
		}
		if promo < *c.PromotionalScoreMin {
			return false
		}
	}
	if c.AccessScoreMax != nil {
		accessScore := accessScoreOf(access)
		if accessScore > *c.AccessScoreMax {
			return false
		}
	}
	if c.NoAccessDays != nil {
		daysSinceAccess := daysSinceLastAccess(access, now)
		if daysSinceAccess < *c.NoAccessDays {
			return false
		}
	}
	return true
}

func accessScoreOf(access *domain.AccessSummary) float64 {
	if access == nil {
		return 1.0 // never accessed: maximally stale, matches AccessPatternTracker's convention
	}
	return access.AccessScore
}

func daysSinceLastAccess(access *domain.AccessSummary, now time.Time) int {
	if access == nil || access.LastAccessed.IsZero() {
		return 1 << 30 // never accessed: satisfies any no_access_days threshold
	}
	days := int(now.Sub(access.LastAccessed).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func buildSafetyInput(msg *domain.MessageIndex, access *domain.AccessSummary, ageDays int, avgSize int64, sScore domain.StalenessScore) safety.Input {
	importanceScore := 0.0
	if msg.Analysis.Importance != nil {
		importanceScore = msg.Analysis.Importance.Score
	}
	return safety.Input{
		Sender:           msg.Sender,
		SenderDomain:     senderDomain(msg.Sender),
		Subject:          msg.Subject,
		Snippet:          msg.Snippet,
		Labels:           msg.Labels,
		SizeBytes:        msg.SizeBytes,
		ThreadID:         msg.ThreadID,
		AgeDays:          ageDays,
		ImportanceScore:  importanceScore,
		HasAttachments:   msg.HasAttachments,
		StalenessTotal:   sScore.TotalScore,
		StalenessAccess:  sScore.AccessScore,
		AverageSizeBytes: avgSize,
	}
}

func senderDomain(sender string) string {
	for i := len(sender) - 1; i >= 0; i-- {
		if sender[i] == '@' {
			return sender[i+1:]
		}
	}
	return ""
}

func averageSize(in []EvaluateInput) int64 {
	if len(in) == 0 {
		return 0
	}
	var total int64
	for _, item := range in {
		total += item.Message.SizeBytes
	}
	return total / int64(len(in))
}
