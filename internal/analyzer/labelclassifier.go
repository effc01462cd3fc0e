package analyzer

import (
	"strings"

	"inboxguard/internal/domain"
)

// CategoryMapping maps one Gmail label to the coarse gmail_category it
// implies. Checked in order: the first matching entry wins, so explicit
// CATEGORY_* labels should precede heuristic ones.
type CategoryMapping struct {
	Label    string
	Category domain.GmailCategory
}

// DefaultCategoryMappings mirrors Gmail's own CATEGORY_* label family.
func DefaultCategoryMappings() []CategoryMapping {
	return []CategoryMapping{
		{Label: "CATEGORY_PERSONAL", Category: domain.CategoryPrimary},
		{Label: "IMPORTANT", Category: domain.CategoryImportant},
		{Label: "SPAM", Category: domain.CategorySpam},
		{Label: "CATEGORY_PROMOTIONS", Category: domain.CategoryPromotions},
		{Label: "CATEGORY_SOCIAL", Category: domain.CategorySocial},
		{Label: "CATEGORY_UPDATES", Category: domain.CategoryUpdates},
		{Label: "CATEGORY_FORUMS", Category: domain.CategoryForums},
	}
}

// LabelClassifierConfig drives the LabelClassifier analyzer: the ordered
// label->category mapping plus, for each of spam/promotional/social, an
// ordered list of (indicator label, weight) pairs. Explicit tags (Gmail's
// own SPAM, CATEGORY_PROMOTIONS, CATEGORY_SOCIAL labels) outrank
// heuristic indicators by being listed first and carrying weight 1.0 in the
// defaults below.
type LabelClassifierConfig struct {
	Mappings []CategoryMapping

	SpamIndicators        []Indicator
	PromotionalIndicators []Indicator
	SocialIndicators      []Indicator
}

// Indicator is one (label, weight) pair an analyzer sums over, with
// dedup: a label contributes at most once per category even if it would
// otherwise match more than one indicator entry.
type Indicator struct {
	Label  string
	Weight float64
}

// DefaultLabelClassifierConfig returns a mapping/indicator set grounded on
// Gmail's own label vocabulary: explicit CATEGORY_* tags outrank heuristic
// sender/label guesses.
func DefaultLabelClassifierConfig() LabelClassifierConfig {
	return LabelClassifierConfig{
		Mappings: DefaultCategoryMappings(),
		SpamIndicators: []Indicator{
			{Label: "SPAM", Weight: 1.0},
			{Label: "UNSUBSCRIBE", Weight: 0.4},
		},
		PromotionalIndicators: []Indicator{
			{Label: "CATEGORY_PROMOTIONS", Weight: 1.0},
			{Label: "SALE", Weight: 0.3},
			{Label: "DEAL", Weight: 0.3},
		},
		SocialIndicators: []Indicator{
			{Label: "CATEGORY_SOCIAL", Weight: 1.0},
		},
	}
}

// LabelClassifier maps a message's labels onto a gmail_category and scores
// spam/promotional/social likelihood from configured indicator lists.
type LabelClassifier struct {
	cfg   LabelClassifierConfig
	cache *cache
}

func NewLabelClassifier(cfg LabelClassifierConfig, cacheSize int) *LabelClassifier {
	return &LabelClassifier{cfg: cfg, cache: newCache(cacheSize)}
}

func (a *LabelClassifier) Analyze(in Input) *domain.LabelClassifierResult {
	key := CanonicalKey(in)
	if v, ok := a.cache.get(key); ok {
		cached := v.(*domain.LabelClassifierResult)
		cp := *cached
		cp.Indicators = append([]string(nil), cached.Indicators...)
		return &cp
	}

	result := &domain.LabelClassifierResult{
		GmailCategory: a.category(in.Labels),
	}

	spamScore, spamHits := a.score(in.Labels, a.cfg.SpamIndicators)
	promoScore, promoHits := a.score(in.Labels, a.cfg.PromotionalIndicators)
	socialScore, socialHits := a.score(in.Labels, a.cfg.SocialIndicators)

	result.SpamScore = spamScore
	result.PromotionalScore = promoScore
	result.SocialScore = socialScore
	result.Indicators = dedupIndicators(spamHits, promoHits, socialHits)

	a.cache.put(key, result)
	return result
}

func (a *LabelClassifier) category(labels []string) domain.GmailCategory {
	for _, mapping := range a.cfg.Mappings {
		if hasLabel(labels, mapping.Label) {
			return mapping.Category
		}
	}
	return domain.CategoryPrimary
}

// score sums the weight of every indicator whose label is present,
// deduplicating so a label contributes at most once even if listed twice.
func (a *LabelClassifier) score(labels []string, indicators []Indicator) (float64, []string) {
	seen := make(map[string]bool, len(indicators))
	var sum float64
	var hits []string
	for _, ind := range indicators {
		if seen[ind.Label] {
			continue
		}
		if hasLabel(labels, ind.Label) {
			sum += ind.Weight
			hits = append(hits, ind.Label)
			seen[ind.Label] = true
		}
	}
	return clip(sum), hits
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, want) {
			return true
		}
	}
	return false
}

func dedupIndicators(groups ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range groups {
		for _, v := range g {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
