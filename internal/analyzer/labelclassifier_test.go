package analyzer

import (
	"testing"

	"inboxguard/internal/domain"
)

func TestLabelClassifierCategoryMapping(t *testing.T) {
	a := NewLabelClassifier(DefaultLabelClassifierConfig(), 0)

	tests := []struct {
		name   string
		labels []string
		want   domain.GmailCategory
	}{
		{"promotions", []string{"INBOX", "CATEGORY_PROMOTIONS"}, domain.CategoryPromotions},
		{"spam wins over promotions", []string{"SPAM", "CATEGORY_PROMOTIONS"}, domain.CategorySpam},
		{"important outranks promotions per order", []string{"IMPORTANT", "CATEGORY_PROMOTIONS"}, domain.CategoryImportant},
		{"no mapping falls back to primary", []string{"INBOX"}, domain.CategoryPrimary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(Input{Labels: tt.labels})
			if got.GmailCategory != tt.want {
				t.Errorf("GmailCategory = %v, want %v", got.GmailCategory, tt.want)
			}
		})
	}
}

func TestLabelClassifierIndicatorDedup(t *testing.T) {
	cfg := LabelClassifierConfig{
		Mappings: DefaultCategoryMappings(),
		SpamIndicators: []Indicator{
			{Label: "SPAM", Weight: 0.6},
			{Label: "SPAM", Weight: 0.6}, // duplicate entry, must count once
		},
	}
	a := NewLabelClassifier(cfg, 0)

	got := a.Analyze(Input{Labels: []string{"SPAM"}})
	if got.SpamScore != 0.6 {
		t.Errorf("SpamScore = %v, want 0.6 (duplicate label counted once)", got.SpamScore)
	}
	if len(got.Indicators) != 1 {
		t.Errorf("Indicators = %v, want exactly one entry", got.Indicators)
	}
}

func TestLabelClassifierScoreIsClipped(t *testing.T) {
	cfg := LabelClassifierConfig{
		Mappings: DefaultCategoryMappings(),
		SpamIndicators: []Indicator{
			{Label: "A", Weight: 0.8},
			{Label: "B", Weight: 0.8},
		},
	}
	a := NewLabelClassifier(cfg, 0)

	got := a.Analyze(Input{Labels: []string{"A", "B"}})
	if got.SpamScore != 1.0 {
		t.Errorf("SpamScore = %v, want 1.0 (clipped)", got.SpamScore)
	}
}
