package analyzer

import (
	"testing"
	"time"

	"inboxguard/internal/domain"
)

func TestDateSizeBuckets(t *testing.T) {
	a := NewDateSize(DefaultDateSizeConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		ageDays    int
		size       int64
		wantAge    domain.AgeCategory
		wantSize   domain.SizeCategory
	}{
		{"recent small", 5, 1024, domain.AgeRecent, domain.SizeSmall},
		{"moderate medium", 100, 500 * 1024, domain.AgeModerate, domain.SizeMedium},
		{"old large", 400, 5 * 1024 * 1024, domain.AgeOld, domain.SizeLarge},
		{"boundary recent", 30, 10, domain.AgeRecent, domain.SizeSmall},
		{"boundary moderate", 180, 10, domain.AgeModerate, domain.SizeSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Date: now.Add(-time.Duration(tt.ageDays) * 24 * time.Hour), SizeBytes: tt.size, Now: now}
			got := a.Analyze(in)
			if got.AgeCategory != tt.wantAge {
				t.Errorf("AgeCategory = %v, want %v", got.AgeCategory, tt.wantAge)
			}
			if got.SizeCategory != tt.wantSize {
				t.Errorf("SizeCategory = %v, want %v", got.SizeCategory, tt.wantSize)
			}
		})
	}
}

func TestDateSizeRecencyScoreDecreasesWithAge(t *testing.T) {
	a := NewDateSize(DefaultDateSizeConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := a.Analyze(Input{Date: now.Add(-1 * 24 * time.Hour), Now: now})
	older := a.Analyze(Input{Date: now.Add(-300 * 24 * time.Hour), Now: now})

	if newer.RecencyScore <= older.RecencyScore {
		t.Errorf("expected newer message to score higher recency: newer=%v older=%v", newer.RecencyScore, older.RecencyScore)
	}
}

func TestDateSizePenaltyIncreasesWithSize(t *testing.T) {
	a := NewDateSize(DefaultDateSizeConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	small := a.Analyze(Input{Date: now, SizeBytes: 1024, Now: now})
	large := a.Analyze(Input{Date: now, SizeBytes: 8 * 1024 * 1024, Now: now})

	if large.SizePenalty <= small.SizePenalty {
		t.Errorf("expected larger message to score higher size penalty: small=%v large=%v", small.SizePenalty, large.SizePenalty)
	}
}
