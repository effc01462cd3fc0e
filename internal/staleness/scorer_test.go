package staleness

import (
	"testing"

	"inboxguard/internal/domain"
)

func TestScoreRecommendations(t *testing.T) {
	weights := domain.DefaultStalenessWeights()
	th := DefaultThresholds()

	tests := []struct {
		name string
		f    Factors
		want domain.Recommendation
	}{
		{
			name: "old unimportant unaccessed spammy -> delete",
			f:    Factors{AgeScore: 1, ImportanceScore: 0, SizePenalty: 1, SpamScore: 1, AccessScore: 1},
			want: domain.RecommendDelete,
		},
		{
			name: "moderately stale but never accessed -> archive not delete",
			f:    Factors{AgeScore: 0.6, ImportanceScore: 0.3, SizePenalty: 0.2, SpamScore: 0, AccessScore: 1},
			want: domain.RecommendArchive,
		},
		{
			name: "fresh important frequently accessed -> keep",
			f:    Factors{AgeScore: 0, ImportanceScore: 1, SizePenalty: 0, SpamScore: 0, AccessScore: 0},
			want: domain.RecommendKeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.f, weights, th)
			if got.Recommendation != tt.want {
				t.Errorf("Recommendation = %v, want %v (total=%v access=%v)", got.Recommendation, tt.want, got.TotalScore, got.AccessScore)
			}
			if got.TotalScore < 0 || got.TotalScore > 1 {
				t.Errorf("TotalScore out of [0,1]: %v", got.TotalScore)
			}
		})
	}
}

func TestScoreDeleteRequiresBothThresholds(t *testing.T) {
	weights := domain.DefaultStalenessWeights()
	th := DefaultThresholds()

	// High total score but low access score must NOT recommend delete.
	f := Factors{AgeScore: 1, ImportanceScore: 0, SizePenalty: 1, SpamScore: 1, AccessScore: 0.1}
	got := Score(f, weights, th)
	if got.Recommendation == domain.RecommendDelete {
		t.Errorf("expected archive (not delete) when access_score is below threshold, got %v (total=%v)", got.Recommendation, got.TotalScore)
	}
}

func TestFactorsFromInvertsRecencyIntoAge(t *testing.T) {
	analysis := &domain.AnalyzerResult{
		DateSize: &domain.DateSizeResult{RecencyScore: 0.2, SizePenalty: 0.4},
	}
	f := FactorsFrom(analysis, nil)
	if f.AgeScore != 0.8 {
		t.Errorf("AgeScore = %v, want 0.8 (1 - RecencyScore)", f.AgeScore)
	}
}
