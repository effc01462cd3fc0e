package analyzer

import (
	"strings"

	"inboxguard/internal/domain"
)

// RuleMatcher is the predicate half of one Importance rule: "does this
// message match, over headers/labels/size/sender/age". Kept as a function
// value (rather than a declarative struct the analyzer interprets) so
// callers compose matchers from the helpers below or supply their own.
type RuleMatcher func(in Input) bool

// ImportanceRule is one entry in the ordered rule set: if Match fires, its
// Weight contributes to the clipped weighted sum and its ID is recorded in
// ImportanceResult.MatchedRuleIDs.
type ImportanceRule struct {
	ID     string
	Match  RuleMatcher
	Weight float64
}

// ImportanceConfig drives the Importance analyzer: an ordered rule set plus
// the thresholds that turn the final score into a coarse level.
type ImportanceConfig struct {
	Rules []ImportanceRule

	// LowThreshold/MediumThreshold bound the three importance levels:
	// score < LowThreshold = low, < MediumThreshold = medium, else high.
	// Defaults: 0.33 / 0.66.
	LowThreshold    float64
	MediumThreshold float64
}

// DefaultImportanceConfig returns the documented default thresholds with
// no rules configured; callers append their own rule set.
func DefaultImportanceConfig() ImportanceConfig {
	return ImportanceConfig{LowThreshold: 0.33, MediumThreshold: 0.66}
}

// Importance scores a message's importance as a clipped weighted sum over
// an ordered rule set.
type Importance struct {
	cfg   ImportanceConfig
	cache *cache
}

// NewImportance builds an Importance analyzer. cacheSize bounds the
// memoization cache entry count; 0 uses the default.
func NewImportance(cfg ImportanceConfig, cacheSize int) *Importance {
	return &Importance{cfg: cfg, cache: newCache(cacheSize)}
}

// Analyze applies every configured rule in order, summing the weight of
// each that matches, then clips to [0,1] and derives the level from the
// configured thresholds.
func (a *Importance) Analyze(in Input) *domain.ImportanceResult {
	key := CanonicalKey(in) + "\x00" + strings.ToLower(in.Subject)
	if v, ok := a.cache.get(key); ok {
		cached := v.(*domain.ImportanceResult)
		cp := *cached
		cp.MatchedRuleIDs = append([]string(nil), cached.MatchedRuleIDs...)
		return &cp
	}

	var sum float64
	var matched []string
	for _, rule := range a.cfg.Rules {
		if rule.Match(in) {
			sum += rule.Weight
			matched = append(matched, rule.ID)
		}
	}
	score := clip(sum)

	result := &domain.ImportanceResult{
		Score:          score,
		Level:          a.level(score),
		MatchedRuleIDs: matched,
		Confidence:     confidence(len(matched), len(a.cfg.Rules)),
	}
	a.cache.put(key, result)
	return result
}

func (a *Importance) level(score float64) domain.ImportanceLevel {
	switch {
	case score < a.cfg.LowThreshold:
		return domain.ImportanceLow
	case score < a.cfg.MediumThreshold:
		return domain.ImportanceMedium
	default:
		return domain.ImportanceHigh
	}
}

// confidence grows with the fraction of configured rules that matched,
// scaled by 1.5 and clipped to [0,1]; an empty rule set has no signal at all.
func confidence(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return clip(float64(matched) / float64(total) * 1.5)
}

// Matcher helpers. These cover the common predicate shapes
// (headers/labels/size/sender/age) without committing to one DSL.

// MatchSenderDomain matches when the sender's address ends in the domain.
func MatchSenderDomain(domain string) RuleMatcher {
	domain = strings.ToLower(domain)
	return func(in Input) bool {
		return strings.HasSuffix(strings.ToLower(in.Sender), "@"+domain)
	}
}

// MatchSenderExact matches a sender equal to address, case-insensitively,
// and also any sender string that contains address (e.g. "Name <address>").
func MatchSenderExact(address string) RuleMatcher {
	address = strings.ToLower(address)
	return func(in Input) bool {
		return strings.EqualFold(in.Sender, address) || strings.Contains(strings.ToLower(in.Sender), address)
	}
}

// MatchLabel matches when the message carries the given label.
func MatchLabel(label string) RuleMatcher {
	return func(in Input) bool {
		for _, l := range in.Labels {
			if strings.EqualFold(l, label) {
				return true
			}
		}
		return false
	}
}

// MatchSubjectContains matches when the subject contains the substring,
// case-insensitively.
func MatchSubjectContains(substr string) RuleMatcher {
	substr = strings.ToLower(substr)
	return func(in Input) bool {
		return strings.Contains(strings.ToLower(in.Subject), substr)
	}
}

// MatchSizeOver matches messages larger than minBytes.
func MatchSizeOver(minBytes int64) RuleMatcher {
	return func(in Input) bool {
		return in.SizeBytes > minBytes
	}
}

// MatchRecentWithin matches messages whose Date is within maxDays of Now.
func MatchRecentWithin(maxDays int) RuleMatcher {
	return func(in Input) bool {
		now := in.Now
		if now.IsZero() {
			return false
		}
		return int(now.Sub(in.Date).Hours()/24) <= maxDays
	}
}
