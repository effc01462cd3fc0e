package analyzer

import (
	"math"
	"time"

	"inboxguard/internal/domain"
)

// DateSizeConfig holds the age/size bucket boundaries. Defaults: age
// recent<=30d, moderate<=180d, else old; size small<100KB, medium<1MB,
// else large.
type DateSizeConfig struct {
	RecentMaxDays   int
	ModerateMaxDays int

	SmallMaxBytes  int64
	MediumMaxBytes int64
}

// DefaultDateSizeConfig returns the documented default bucket boundaries.
func DefaultDateSizeConfig() DateSizeConfig {
	return DateSizeConfig{
		RecentMaxDays:   30,
		ModerateMaxDays: 180,
		SmallMaxBytes:   100 * 1024,
		MediumMaxBytes:  1024 * 1024,
	}
}

// DateSize buckets a message's age and size and scores recency/size
// penalty. Not memoized (see cache.go) since both scores are continuous
// functions of exact age/size, not of the coarse bucket alone.
type DateSize struct {
	cfg DateSizeConfig
}

func NewDateSize(cfg DateSizeConfig) *DateSize {
	return &DateSize{cfg: cfg}
}

func (a *DateSize) Analyze(in Input) *domain.DateSizeResult {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	ageDays := int(now.Sub(in.Date).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}

	return &domain.DateSizeResult{
		AgeCategory:  a.ageCategory(ageDays),
		SizeCategory: a.sizeCategory(in.SizeBytes),
		RecencyScore: a.recencyScore(ageDays),
		SizePenalty:  a.sizePenalty(in.SizeBytes),
	}
}

func (a *DateSize) ageCategory(ageDays int) domain.AgeCategory {
	switch {
	case ageDays <= a.cfg.RecentMaxDays:
		return domain.AgeRecent
	case ageDays <= a.cfg.ModerateMaxDays:
		return domain.AgeModerate
	default:
		return domain.AgeOld
	}
}

func (a *DateSize) sizeCategory(size int64) domain.SizeCategory {
	switch {
	case size < a.cfg.SmallMaxBytes:
		return domain.SizeSmall
	case size < a.cfg.MediumMaxBytes:
		return domain.SizeMedium
	default:
		return domain.SizeLarge
	}
}

// recencyScore decays linearly from 1.0 at age 0 to 0.0 at one year old,
// floored there — higher for newer, without an arbitrary cliff at the
// bucket boundary.
func (a *DateSize) recencyScore(ageDays int) float64 {
	const horizonDays = 365
	if ageDays >= horizonDays {
		return 0
	}
	return clip(1 - float64(ageDays)/float64(horizonDays))
}

// sizePenalty grows logarithmically past 10KB, saturating at 10MB —
// higher for larger, without letting a single huge attachment dominate the
// scale linearly.
func (a *DateSize) sizePenalty(size int64) float64 {
	const floor = 10 * 1024     // below this, no penalty
	const ceiling = 10 * 1024 * 1024 // at/above this, full penalty
	if size <= floor {
		return 0
	}
	if size >= ceiling {
		return 1
	}
	return clip(logRange(float64(size), floor, ceiling))
}

// logRange maps x in [lo, hi] onto [0, 1] logarithmically.
func logRange(x, lo, hi float64) float64 {
	if x <= lo {
		return 0
	}
	if x >= hi {
		return 1
	}
	return math.Log2(x/lo) / math.Log2(hi/lo)
}
