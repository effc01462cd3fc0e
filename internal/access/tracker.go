// Package access records per-message access events into the user's own
// store and
// maintains a derived AccessSummary whose access_score feeds
// internal/staleness.
package access

import (
	"context"
	"time"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
)

// ScoreConfig tunes how access_score responds to recency and volume.
// SaturationDays is how many days of silence saturate the score at 1.0;
// PerAccessDecay is how much each historical access discounts that
// ceiling, capped so a heavily-read message can never fully zero it out
// (a message read constantly a year ago is still staler than one read
// yesterday).
type ScoreConfig struct {
	SaturationDays float64
	PerAccessDecay float64
	MaxDecay       float64
}

// DefaultScoreConfig saturates after 90 days of silence; each historical
// access shaves 2% off the ceiling, capped at a 60% discount.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{SaturationDays: 90, PerAccessDecay: 0.02, MaxDecay: 0.6}
}

// Tracker is the per-user AccessPatternTracker. One Tracker wraps one
// user's AccessDAO; the app wiring constructs a fresh one per UserStore
// rather than holding a single shared instance.
type Tracker struct {
	dao *storage.AccessDAO
	cfg ScoreConfig
}

func NewTracker(dao *storage.AccessDAO, cfg ScoreConfig) *Tracker {
	return &Tracker{dao: dao, cfg: cfg}
}

// Record appends one raw event and updates the message's AccessSummary: the
// counters and LastAccessed are updated in place for this event, and
// access_score is then recomputed from the updated summary.
func (t *Tracker) Record(ctx context.Context, e *domain.AccessEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if err := t.dao.RecordEvent(ctx, e); err != nil {
		return err
	}

	summary, err := t.dao.GetSummary(ctx, e.MessageID)
	if err != nil {
		if apperr.Reason(err) != apperr.CodeNotFound {
			return err
		}
		summary = &domain.AccessSummary{MessageID: e.MessageID}
	}

	summary.TotalAccesses++
	summary.LastAccessed = e.OccurredAt
	switch e.Kind {
	case domain.AccessEventSearchAppearance:
		summary.SearchAppearances++
	case domain.AccessEventSearchInteraction:
		summary.SearchInteractions++
	}
	summary.AccessScore = t.score(summary, e.OccurredAt)

	return t.dao.UpsertSummary(ctx, summary)
}

// Score recomputes access_score for a summary as of now, without
// recording a new event — used by StalenessScorer to re-evaluate staleness
// against the current moment rather than whenever the summary was last
// touched.
func (t *Tracker) Score(summary *domain.AccessSummary, now time.Time) float64 {
	return t.score(summary, now)
}

func (t *Tracker) score(summary *domain.AccessSummary, now time.Time) float64 {
	if summary.LastAccessed.IsZero() {
		return 1.0 // never accessed: maximally stale
	}
	daysSince := now.Sub(summary.LastAccessed).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}

	ceiling := clip01(daysSince / t.cfg.SaturationDays)
	decay := float64(summary.TotalAccesses) * t.cfg.PerAccessDecay
	if decay > t.cfg.MaxDecay {
		decay = t.cfg.MaxDecay
	}
	return clip01(ceiling * (1 - decay))
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
