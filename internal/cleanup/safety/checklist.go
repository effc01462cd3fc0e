// Package safety implements SafetyConfig's layered checklist: eleven
// ordered checks run against one message at a time, the
// first failure short-circuiting the rest. Severity is attached per check
// so callers can judge how conservative the trip was, not just that one
// happened.
package safety

import (
	"strings"

	"inboxguard/internal/domain"
)

// Input is everything one checklist run needs about a single candidate
// message. It is deliberately a flat struct rather than *domain.MessageIndex
// so the checklist never needs to know how access/staleness scores were
// derived — the caller (EvaluateForCleanup) assembles it from whichever
// stores it already queried.
type Input struct {
	Sender           string
	SenderDomain     string
	Subject          string
	Snippet          string
	Labels           []string
	SizeBytes        int64
	ThreadID         string
	AgeDays          int
	ImportanceScore  float64
	HasAttachments   bool
	StalenessTotal   float64
	StalenessAccess  float64
	AverageSizeBytes int64
}

// Counters carries the rolling deletion counts the batch-limit check compares
// against the configured caps. The checklist does not maintain them, and no
// code in this module counts deletions: EvaluateForCleanup passes a zero
// Counters, so there batchLimits always passes.
type Counters struct {
	DeletionsThisHour int
	DeletionsThisDay  int
}

// Checker runs the ordered checklist against a SafetyConfig, recording
// every check into a shared SafetyMetrics.
type Checker struct {
	cfg     *domain.SafetyConfig
	metrics *domain.SafetyMetrics
}

func NewChecker(cfg *domain.SafetyConfig, metrics *domain.SafetyMetrics) *Checker {
	if cfg == nil {
		cfg = domain.DefaultSafetyConfig()
	}
	if metrics == nil {
		metrics = domain.NewSafetyMetrics()
	}
	return &Checker{cfg: cfg, metrics: metrics}
}

// Evaluate runs the eleven checks in their fixed order, returning
// the first failure (or a safe result if every check passes). Every result,
// pass or fail, is recorded into the shared SafetyMetrics.
func (c *Checker) Evaluate(in Input, counters Counters) domain.SafetyCheckResult {
	checks := []func(Input, Counters) domain.SafetyCheckResult{
		c.batchLimits,
		c.domainProtection,
		c.vipExecutive,
		c.labelSafety,
		c.legalCompliance,
		c.attachmentSafety,
		c.senderReputation,
		c.threadSafety,
		c.unreadProtection,
		c.sizeAnomaly,
		c.stalenessAccess,
	}

	for _, check := range checks {
		result := check(in, counters)
		c.metrics.Record(result)
		if !result.Safe {
			return result
		}
	}

	return domain.SafetyCheckResult{Safe: true}
}

func (c *Checker) batchLimits(_ Input, counters Counters) domain.SafetyCheckResult {
	if c.cfg.MaxDeletionsPerHour > 0 && counters.DeletionsThisHour >= c.cfg.MaxDeletionsPerHour {
		return protect(domain.CheckBatchLimits, domain.SeverityHigh, "max_deletions_per_hour reached")
	}
	if c.cfg.MaxDeletionsPerDay > 0 && counters.DeletionsThisDay >= c.cfg.MaxDeletionsPerDay {
		return protect(domain.CheckBatchLimits, domain.SeverityHigh, "max_deletions_per_day reached")
	}
	return safe()
}

func (c *Checker) domainProtection(in Input, _ Counters) domain.SafetyCheckResult {
	d := strings.ToLower(in.SenderDomain)
	if d == "" {
		return safe()
	}
	if containsFold(c.cfg.VIPDomains, d) {
		return protect(domain.CheckDomainProtection, domain.SeverityCritical, "sender domain is a VIP domain")
	}
	if containsFold(c.cfg.TrustedDomains, d) {
		return protect(domain.CheckDomainProtection, domain.SeverityHigh, "sender domain is a trusted domain")
	}
	if containsFold(c.cfg.WhitelistDomains, d) {
		return protect(domain.CheckDomainProtection, domain.SeverityMedium, "sender domain is whitelisted")
	}
	return safe()
}

func (c *Checker) vipExecutive(in Input, _ Counters) domain.SafetyCheckResult {
	haystack := strings.ToLower(in.Subject + " " + in.Sender)
	for _, token := range c.cfg.ExecutiveTokens {
		if token != "" && strings.Contains(haystack, strings.ToLower(token)) {
			return protect(domain.CheckVIPExecutive, domain.SeverityHigh, "matches an executive token")
		}
	}
	return safe()
}

func (c *Checker) labelSafety(in Input, _ Counters) domain.SafetyCheckResult {
	if labelOverlaps(in.Labels, c.cfg.CriticalLabels) {
		return protect(domain.CheckLabelSafety, domain.SeverityCritical, "message carries a critical label")
	}
	if labelOverlaps(in.Labels, c.cfg.ProtectedLabels) {
		return protect(domain.CheckLabelSafety, domain.SeverityHigh, "message carries a protected label")
	}
	return safe()
}

func (c *Checker) legalCompliance(in Input, _ Counters) domain.SafetyCheckResult {
	haystack := strings.ToLower(in.Subject + " " + in.Snippet)
	if containsAnyFold(haystack, c.cfg.LegalKeywords) {
		return protect(domain.CheckLegalCompliance, domain.SeverityCritical, "matches a legal keyword")
	}
	if containsAnyFold(haystack, c.cfg.ComplianceTerms) {
		return protect(domain.CheckLegalCompliance, domain.SeverityHigh, "matches a compliance term")
	}
	if containsAnyFold(haystack, c.cfg.RegulatoryKeywords) {
		return protect(domain.CheckLegalCompliance, domain.SeverityHigh, "matches a regulatory keyword")
	}
	return safe()
}

func (c *Checker) attachmentSafety(in Input, _ Counters) domain.SafetyCheckResult {
	if in.HasAttachments {
		return protect(domain.CheckAttachmentSafety, domain.SeverityMedium, "has attachments, protected pending attachment metadata")
	}
	return safe()
}

func (c *Checker) senderReputation(in Input, _ Counters) domain.SafetyCheckResult {
	d := strings.ToLower(in.SenderDomain)
	frequentContact := d != "" && !containsFold(c.cfg.ConsumerMailDomains, d)
	if frequentContact || in.ImportanceScore >= c.cfg.ImportantSenderScore {
		return protect(domain.CheckSenderReputation, domain.SeverityMedium, "sender appears to be a frequent or important contact")
	}
	return safe()
}

func (c *Checker) threadSafety(in Input, _ Counters) domain.SafetyCheckResult {
	if in.ThreadID != "" && in.AgeDays <= c.cfg.ActiveThreadDays {
		return protect(domain.CheckThreadSafety, domain.SeverityMedium, "part of an active thread")
	}
	subject := strings.ToLower(strings.TrimSpace(in.Subject))
	isReplyOrForward := strings.HasPrefix(subject, "re:") || strings.HasPrefix(subject, "fwd:") || strings.HasPrefix(subject, "fw:")
	if isReplyOrForward && in.AgeDays <= c.cfg.RecentReplyDays {
		return protect(domain.CheckThreadSafety, domain.SeverityMedium, "recent reply or forward")
	}
	return safe()
}

func (c *Checker) unreadProtection(in Input, _ Counters) domain.SafetyCheckResult {
	if hasLabel(in.Labels, "UNREAD") && in.AgeDays <= c.cfg.UnreadRecentDays {
		return protect(domain.CheckUnreadProtection, domain.SeverityHigh, "unread and recent")
	}
	if (in.ImportanceScore + c.cfg.UnreadImportanceBoost) >= c.cfg.ImportanceScoreThreshold {
		return protect(domain.CheckUnreadProtection, domain.SeverityMedium, "importance score plus unread boost meets threshold")
	}
	return safe()
}

func (c *Checker) sizeAnomaly(in Input, _ Counters) domain.SafetyCheckResult {
	if c.cfg.LargeEmailThreshold > 0 && in.SizeBytes >= c.cfg.LargeEmailThreshold {
		return protect(domain.CheckSizeAnomaly, domain.SeverityMedium, "exceeds large email threshold")
	}
	if in.AverageSizeBytes > 0 && float64(in.SizeBytes) > float64(in.AverageSizeBytes)*c.cfg.UnusualSizeMultiplier {
		return protect(domain.CheckSizeAnomaly, domain.SeverityLow, "unusually large relative to average")
	}
	return safe()
}

func (c *Checker) stalenessAccess(in Input, _ Counters) domain.SafetyCheckResult {
	if in.StalenessTotal >= c.cfg.MinStalenessScore && in.StalenessAccess >= c.cfg.MaxAccessScore {
		return safe()
	}
	return protect(domain.CheckStalenessAccess, domain.SeverityMedium, "does not meet staleness/access thresholds")
}

func safe() domain.SafetyCheckResult {
	return domain.SafetyCheckResult{Safe: true}
}

func protect(checkType domain.CheckType, severity domain.Severity, reason string) domain.SafetyCheckResult {
	return domain.SafetyCheckResult{Safe: false, Reason: reason, CheckType: checkType, Severity: severity}
}

func containsFold(list []string, needle string) bool {
	for _, s := range list {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func containsAnyFold(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func labelOverlaps(labels, configured []string) bool {
	for _, l := range labels {
		lLower := strings.ToLower(l)
		for _, cfgLabel := range configured {
			if cfgLabel != "" && strings.Contains(lLower, strings.ToLower(cfgLabel)) {
				return true
			}
		}
	}
	return false
}

func hasLabel(labels []string, target string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, target) {
			return true
		}
	}
	return false
}
