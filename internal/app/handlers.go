package app

import (
	"context"
	"encoding/json"
	"time"

	"inboxguard/internal/automation"
	"inboxguard/internal/categorize"
	"inboxguard/internal/cleanup"
	"inboxguard/internal/domain"
	"inboxguard/internal/staleness"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
)

// CleanupJobHandler is the jobqueue.Handler for domain.JobTypeCleanup: it
// decodes the automation.CleanupRequest the enqueueing side wrote into
// Job.RequestParams, resolves which policies apply, evaluates every
// message against them, and executes whatever survives the safety
// checklist. This is the link that turns an AutomationEngine tick (or a
// manual trigger_cleanup call) into an actual provider mutation.
func (a *App) CleanupJobHandler(ctx context.Context, job *domain.Job, report func(processed, total int)) ([]byte, error) {
	var req automation.CleanupRequest
	if len(job.RequestParams) > 0 {
		if err := json.Unmarshal(job.RequestParams, &req); err != nil {
			return nil, apperr.InternalWithError(err)
		}
	}

	result, err := a.EvaluateCleanup(ctx, job.UserID, req.PolicyID, req.MaxEmails)
	if err != nil {
		return nil, err
	}
	report(result.Summary.Candidates+result.Summary.Protected, result.Summary.Total)

	now := time.Now()

	if len(result.CleanupCandidates) == 0 {
		return json.Marshal(result)
	}

	token, err := a.TokenFor(ctx, job.UserID)
	if err != nil {
		return nil, err
	}
	exec, err := a.NewExecutor(ctx, job.UserID)
	if err != nil {
		return nil, err
	}
	execResult, err := exec.Execute(ctx, job.UserID, token, result.CleanupCandidates, req.DryRun, a.Config.ProviderBatchMaxSize, now)
	if err != nil {
		return nil, err
	}

	return json.Marshal(struct {
		Evaluation *cleanup.Result  `json:"evaluation"`
		Execution  interface{}      `json:"execution"`
	}{Evaluation: result, Execution: execResult})
}

// EvaluateCleanup runs the policy-matching algorithm for userID without
// executing anything, the shared core behind trigger_cleanup's preview path
// and get_cleanup_recommendations.
func (a *App) EvaluateCleanup(ctx context.Context, userID, policyID string, maxEmails int) (*cleanup.Result, error) {
	store, err := a.Factory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	policies, err := a.resolvePolicies(ctx, store, policyID)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return &cleanup.Result{}, nil
	}

	messages, err := store.Messages().List(ctx, storage.ListFilter{RequireAnalyzed: true})
	if err != nil {
		return nil, err
	}
	if maxEmails > 0 && len(messages) > maxEmails {
		messages = messages[:maxEmails]
	}

	inputs := make([]cleanup.EvaluateInput, 0, len(messages))
	for _, m := range messages {
		access, _ := store.Access().GetSummary(ctx, m.MessageID)
		inputs = append(inputs, cleanup.EvaluateInput{Message: m, Access: access})
	}

	now := time.Now()
	return cleanup.EvaluateForCleanup(ctx, inputs, policies, domain.DefaultSafetyConfig(), a.SafetyMetrics, domain.DefaultStalenessWeights(), staleness.DefaultThresholds(), now), nil
}

func (a *App) resolvePolicies(ctx context.Context, store *storage.UserStore, policyID string) ([]*domain.CleanupPolicy, error) {
	if policyID == "" {
		return store.Policies().ListEnabled(ctx)
	}
	p, err := store.Policies().Get(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !p.Enabled {
		return nil, nil
	}
	return []*domain.CleanupPolicy{p}, nil
}

// CategorizationJobHandler is the jobqueue.Handler for
// domain.JobTypeCategorization: it runs categorize.Engine.Run against the
// user's own message store.
func (a *App) CategorizationJobHandler(ctx context.Context, job *domain.Job, report func(processed, total int)) ([]byte, error) {
	var req categorize.Request
	if len(job.RequestParams) > 0 {
		if err := json.Unmarshal(job.RequestParams, &req); err != nil {
			return nil, apperr.InternalWithError(err)
		}
	}

	store, err := a.Factory.Get(ctx, job.UserID)
	if err != nil {
		return nil, err
	}

	analyzed, err := a.Categorizer.Run(ctx, store.Messages(), req, time.Now(), categorize.ProgressFunc(report))
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Analyzed int `json:"analyzed"`
	}{Analyzed: analyzed})
}
