// Package categorize runs the three internal/analyzer scorers over a
// selection of messages and
// writes their results back through storage.MessageDAO's per-analyzer
// partial updates. It never touches a message's archived flag or labels —
// those belong to internal/cleanup and internal/mailprovider respectively.
package categorize

import (
	"context"
	"fmt"
	"time"

	"inboxguard/internal/analyzer"
	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
)

// EngineVersion is bumped whenever analyzer logic changes meaning; a
// message whose stored analysis_version already matches this is skipped
// unless the caller sets ForceRefresh.
const EngineVersion = 1

// DefaultBatchSize is the default number of messages scored per batch.
const DefaultBatchSize = 100

// Selection names which messages a run considers. Exactly one of Year,
// MessageIDs, or AllUnanalyzed should be meaningful; the engine checks them
// in that order.
type Selection struct {
	Year          int      // 0 = not selecting by year
	MessageIDs    []string // non-empty = explicit id list
	AllUnanalyzed bool      // true = every message with analysis_version < EngineVersion
}

// Request configures one categorization run.
type Request struct {
	Selection    Selection
	ForceRefresh bool
	BatchSize    int // 0 = DefaultBatchSize
}

// ProgressFunc receives a report after each batch.
type ProgressFunc func(analyzed, total int)

// Engine orchestrates Importance, DateSize, and LabelClassifier over a
// user's indexed messages.
type Engine struct {
	importance *analyzer.Importance
	dateSize   *analyzer.DateSize
	labels     *analyzer.LabelClassifier
}

// NewEngine builds an Engine from already-constructed analyzers so the app
// wiring controls their configuration and cache sizes in one place.
func NewEngine(importance *analyzer.Importance, dateSize *analyzer.DateSize, labels *analyzer.LabelClassifier) *Engine {
	return &Engine{importance: importance, dateSize: dateSize, labels: labels}
}

// Run processes req.Selection against messages, in batches of req.BatchSize
// (or DefaultBatchSize), calling progress after each batch. now is injected
// so callers get a stable "current moment" across an entire run instead of
// DateSize re-reading the wall clock per message.
func (e *Engine) Run(ctx context.Context, messages *storage.MessageDAO, req Request, now time.Time, progress ProgressFunc) (analyzed int, err error) {
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	candidates, err := e.resolveSelection(ctx, messages, req.Selection)
	if err != nil {
		return 0, fmt.Errorf("resolve selection: %w", err)
	}
	total := len(candidates)

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batch := candidates[start:end]

		for _, msg := range batch {
			select {
			case <-ctx.Done():
				return analyzed, ctx.Err()
			default:
			}

			if !req.ForceRefresh && msg.Analysis.AnalysisVersion >= EngineVersion {
				continue
			}
			if err := e.analyzeOne(ctx, messages, msg, now); err != nil {
				return analyzed, fmt.Errorf("analyze message %s: %w", msg.MessageID, err)
			}
			analyzed++
		}

		if progress != nil {
			progress(analyzed, total)
		}
	}

	return analyzed, nil
}

// analyzeOne runs all three analyzers on one message and persists each
// result through its own partial update, so each analyzer's columns are
// written together. A failed write returns at once: the analyzers written
// before it keep their new values and the later ones keep their old ones.
func (e *Engine) analyzeOne(ctx context.Context, messages *storage.MessageDAO, msg *domain.MessageIndex, now time.Time) error {
	in := analyzer.Input{
		Sender:    msg.Sender,
		Subject:   msg.Subject,
		Labels:    msg.Labels,
		SizeBytes: msg.SizeBytes,
		Date:      msg.Date,
		Now:       now,
	}

	imp := e.importance.Analyze(in)
	if err := messages.UpdateImportance(ctx, msg.MessageID, imp, EngineVersion, now); err != nil {
		return err
	}

	ds := e.dateSize.Analyze(in)
	if err := messages.UpdateDateSize(ctx, msg.MessageID, ds, EngineVersion, now); err != nil {
		return err
	}

	lc := e.labels.Analyze(in)
	if err := messages.UpdateLabelClassifier(ctx, msg.MessageID, lc, EngineVersion, now); err != nil {
		return err
	}

	return nil
}

// resolveSelection turns a Selection into the concrete message list to
// walk, checked in the order year, explicit ids, all-unanalyzed.
func (e *Engine) resolveSelection(ctx context.Context, messages *storage.MessageDAO, sel Selection) ([]*domain.MessageIndex, error) {
	switch {
	case sel.Year != 0:
		return messages.List(ctx, storage.ListFilter{Year: sel.Year})
	case len(sel.MessageIDs) > 0:
		out := make([]*domain.MessageIndex, 0, len(sel.MessageIDs))
		for _, id := range sel.MessageIDs {
			m, err := messages.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get message %s: %w", id, err)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return messages.List(ctx, storage.ListFilter{})
	}
}
