// Package staleness scores a message as a pure function of its stored
// analyzer results and AccessSummary.
package staleness

import "inboxguard/internal/domain"

// Thresholds gate the delete/archive/keep recommendation.
type Thresholds struct {
	DeleteTotal  float64
	DeleteAccess float64
	ArchiveTotal float64
}

// DefaultThresholds: delete when total>=0.75 AND access>=0.5; archive when
// total>=0.5; else keep.
func DefaultThresholds() Thresholds {
	return Thresholds{DeleteTotal: 0.75, DeleteAccess: 0.5, ArchiveTotal: 0.5}
}

// Factors is everything Score needs, gathered from a message's stored
// analyzer results and its AccessSummary. AgeScore is "higher for older"
// (1 - DateSizeResult.RecencyScore, which is "higher for newer") —
// StalenessScore wants staleness evidence, not freshness evidence.
type Factors struct {
	AgeScore        float64
	ImportanceScore float64
	SizePenalty     float64
	SpamScore       float64
	AccessScore     float64
}

// FactorsFrom builds Factors from a message's stored analysis and access
// summary, applying the age_score = 1 - recency_score inversion. A nil
// access summary means the message was never accessed and scores access
// 1.0, the AccessPatternTracker's never-accessed convention.
func FactorsFrom(analysis *domain.AnalyzerResult, access *domain.AccessSummary) Factors {
	f := Factors{AccessScore: 1.0}
	if analysis != nil {
		if analysis.DateSize != nil {
			f.AgeScore = clip(1 - analysis.DateSize.RecencyScore)
			f.SizePenalty = analysis.DateSize.SizePenalty
		}
		if analysis.Importance != nil {
			f.ImportanceScore = analysis.Importance.Score
		}
		if analysis.LabelClassifier != nil {
			f.SpamScore = analysis.LabelClassifier.SpamScore
		}
	}
	if access != nil {
		f.AccessScore = access.AccessScore
	}
	return f
}

// Score computes total_score = w1*age + w2*(1-importance) + w3*size_penalty
// + w4*spam + w5*access, clipped to [0,1], and derives recommendation and
// confidence from it.
func Score(f Factors, weights domain.StalenessWeights, th Thresholds) domain.StalenessScore {
	total := clip(
		weights.Age*f.AgeScore +
			weights.Importance*(1-f.ImportanceScore) +
			weights.Size*f.SizePenalty +
			weights.Spam*f.SpamScore +
			weights.Access*f.AccessScore,
	)

	s := domain.StalenessScore{
		TotalScore:      total,
		AgeScore:        f.AgeScore,
		ImportanceScore: f.ImportanceScore,
		SizePenalty:     f.SizePenalty,
		SpamScore:       f.SpamScore,
		AccessScore:     f.AccessScore,
	}

	switch {
	case total >= th.DeleteTotal && f.AccessScore >= th.DeleteAccess:
		s.Recommendation = domain.RecommendDelete
	case total >= th.ArchiveTotal:
		s.Recommendation = domain.RecommendArchive
	default:
		s.Recommendation = domain.RecommendKeep
	}

	s.Confidence = confidence(f)
	return s
}

// confidence is high when the age and access evidence agree (both old-and-
// unaccessed, or both recent-and-accessed) — agreement between the two
// factors the recommendation leans on most heavily outside importance.
func confidence(f Factors) float64 {
	agreement := 1 - abs(f.AgeScore-f.AccessScore)
	return clip(agreement)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clip(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
