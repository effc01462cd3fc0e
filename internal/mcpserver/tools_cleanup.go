package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/automation"
	"inboxguard/internal/cleanup"
	"inboxguard/internal/cleanup/executor"
	"inboxguard/internal/domain"
	"inboxguard/pkg/apperr"
)

// cleanupExecResult is an alias so tools_archive.go's shared helper doesn't
// need to import the executor package directly.
type cleanupExecResult = executor.Result

// runExecute resolves userID's token and a fresh executor, then runs
// candidates through it. Shared by archive_emails, delete_emails, and
// restore_emails' sibling ad-hoc tools.
func (s *Server) runExecute(ctx context.Context, userID string, candidates []cleanup.Candidate, dryRun bool) (*executor.Result, error) {
	token, err := s.app.TokenFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	exec, err := s.app.NewExecutor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return exec.Execute(ctx, userID, token, candidates, dryRun, executor.DefaultChunkSize, time.Now())
}

type deleteEmailsInput struct {
	SessionToken string   `json:"session_token"`
	MessageIDs   []string `json:"message_ids"`
	DryRun       bool     `json:"dry_run,omitempty"`
	MaxCount     int      `json:"max_count,omitempty" jsonschema:"caps how many of message_ids are actually deleted"`
}

type emptyTrashInput struct {
	SessionToken string `json:"session_token"`
}

type emptyTrashOutput struct {
	Purged int `json:"purged"`
}

type policyInput struct {
	SessionToken string               `json:"session_token"`
	Policy       domain.CleanupPolicy `json:"policy"`
}

type policyIDOutput struct {
	ID string `json:"id"`
}

type getPolicyInput struct {
	SessionToken string `json:"session_token"`
	PolicyID     string `json:"policy_id"`
}

type listPoliciesInput struct {
	SessionToken string `json:"session_token"`
}

type listPoliciesOutput struct {
	Policies []*domain.CleanupPolicy `json:"policies"`
}

type deletePolicyInput struct {
	SessionToken string `json:"session_token"`
	PolicyID     string `json:"policy_id"`
}

type createScheduleInput struct {
	SessionToken string          `json:"session_token"`
	PolicyID     string          `json:"policy_id"`
	Schedule     domain.Schedule `json:"schedule"`
}

type triggerCleanupInput struct {
	SessionToken string `json:"session_token"`
	PolicyID     string `json:"policy_id,omitempty"`
	DryRun       bool   `json:"dry_run,omitempty"`
	MaxEmails    int    `json:"max_emails,omitempty"`
}

type getCleanupStatusInput struct {
	SessionToken string `json:"session_token"`
	JobID        int64  `json:"job_id"`
}

type cleanupMetricsInput struct {
	SessionToken string `json:"session_token"`
}

type cleanupMetricsOutput struct {
	TotalChecks     int64                      `json:"total_checks"`
	ProtectedEmails int64                      `json:"protected_emails"`
	ByCheckType     map[domain.CheckType]int64 `json:"by_check_type"`
}

type cleanupRecommendationsInput struct {
	SessionToken string `json:"session_token"`
	PolicyID     string `json:"policy_id,omitempty"`
	MaxEmails    int    `json:"max_emails,omitempty"`
}

type systemHealthInput struct {
	SessionToken string `json:"session_token"`
}

type systemHealthOutput struct {
	AutomationEnabled bool                   `json:"automation_enabled"`
	Metrics           automation.MetricsSnapshot `json:"metrics"`
	Safety            cleanupMetricsOutput       `json:"safety"`
}

type automationConfigInput struct {
	SessionToken         string `json:"session_token"`
	MaxDeletionsPerHour  int    `json:"max_deletions_per_hour,omitempty"`
	MaxDeletionsPerDay   int    `json:"max_deletions_per_day,omitempty"`
	AutomationEnabled    *bool  `json:"automation_enabled,omitempty"`
	PauseDuringPeakHours *bool  `json:"pause_during_peak_hours,omitempty"`
	PeakHoursStart       int    `json:"peak_hours_start,omitempty"`
	PeakHoursEnd         int    `json:"peak_hours_end,omitempty"`
}

type automationConfigOutput struct {
	MaxDeletionsPerHour  int  `json:"max_deletions_per_hour"`
	MaxDeletionsPerDay   int  `json:"max_deletions_per_day"`
	AutomationEnabled    bool `json:"automation_enabled"`
	PauseDuringPeakHours bool `json:"pause_during_peak_hours"`
	PeakHoursStart       int  `json:"peak_hours_start"`
	PeakHoursEnd         int  `json:"peak_hours_end"`
}

// registerCleanupTools wires every policy-engine, automation, and ad-hoc
// deletion tool: delete_emails, empty_trash, the cleanup_policy CRUD set,
// create_cleanup_schedule, trigger_cleanup, get_cleanup_status,
// get_cleanup_metrics, get_cleanup_recommendations, get_system_health, and
// update_cleanup_automation_config.
func (s *Server) registerCleanupTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_emails",
		Description: "Move the given message ids to Trash (reversible until Gmail auto-expires Trash, or empty_trash is called). dry_run reports what would happen without mutating anything.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in deleteEmailsInput) (*mcp.CallToolResult, executeOutcomeOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[executeOutcomeOutput](err)
		}
		ids := in.MessageIDs
		if in.MaxCount > 0 && len(ids) > in.MaxCount {
			ids = ids[:in.MaxCount]
		}
		messages, err := s.loadMessages(ctx, caller.UserID, ids)
		if err != nil {
			return toolErrorT[executeOutcomeOutput](err)
		}
		result, err := s.runExecute(ctx, caller.UserID, adHocCandidates(messages, domain.ActionDelete, domain.MethodProvider), in.DryRun)
		if err != nil {
			return toolErrorT[executeOutcomeOutput](err)
		}
		return nil, toExecuteOutcome(result), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "empty_trash",
		Description: "Permanently purge everything currently in Trash. Irreversible.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in emptyTrashInput) (*mcp.CallToolResult, emptyTrashOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[emptyTrashOutput](err)
		}
		token, err := s.app.TokenFor(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[emptyTrashOutput](err)
		}
		purged, err := s.app.Provider.PurgeTrash(ctx, token)
		if err != nil {
			return toolErrorT[emptyTrashOutput](err)
		}
		return nil, emptyTrashOutput{Purged: purged}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_cleanup_policy",
		Description: "Create a cleanup policy describing which emails to archive/delete, how, and under what safety overrides.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in policyInput) (*mcp.CallToolResult, policyIDOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		policies, err := s.app.PoliciesFor(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		p := in.Policy
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.UserID = caller.UserID
		if err := policies.Create(ctx, &p); err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		return nil, policyIDOutput{ID: p.ID}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_cleanup_policy",
		Description: "Update an existing cleanup policy by id.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in policyInput) (*mcp.CallToolResult, policyIDOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		policies, err := s.app.PoliciesFor(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		p := in.Policy
		p.UserID = caller.UserID
		if err := policies.Update(ctx, &p); err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		return nil, policyIDOutput{ID: p.ID}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_cleanup_policies",
		Description: "List the caller's cleanup policies.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listPoliciesInput) (*mcp.CallToolResult, listPoliciesOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[listPoliciesOutput](err)
		}
		policies, err := s.app.PoliciesFor(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[listPoliciesOutput](err)
		}
		list, err := policies.List(ctx)
		if err != nil {
			return toolErrorT[listPoliciesOutput](err)
		}
		return nil, listPoliciesOutput{Policies: list}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_cleanup_policy",
		Description: "Delete a cleanup policy by id.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in deletePolicyInput) (*mcp.CallToolResult, any, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolError(err)
		}
		policies, err := s.app.PoliciesFor(ctx, caller.UserID)
		if err != nil {
			return toolError(err)
		}
		if err := policies.Delete(ctx, in.PolicyID); err != nil {
			return toolError(err)
		}
		return nil, map[string]any{"deleted": true}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_cleanup_schedule",
		Description: "Attach a recurring schedule to an existing cleanup policy.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in createScheduleInput) (*mcp.CallToolResult, policyIDOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		policies, err := s.app.PoliciesFor(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		p, err := policies.Get(ctx, in.PolicyID)
		if err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		p.Schedule = in.Schedule
		if err := policies.Update(ctx, p); err != nil {
			return toolErrorT[policyIDOutput](err)
		}
		return nil, policyIDOutput{ID: p.ID}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "trigger_cleanup",
		Description: "Enqueue a cleanup run, optionally pinned to one policy_id. Returns a job_id; poll get_job_status or get_cleanup_status for progress.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in triggerCleanupInput) (*mcp.CallToolResult, jobAcceptedOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[jobAcceptedOutput](err)
		}
		cleanupReq := automation.CleanupRequest{
			PolicyID:  in.PolicyID,
			DryRun:    in.DryRun,
			MaxEmails: in.MaxEmails,
			Priority:  "normal",
			Trigger:   "manual",
		}
		params, err := json.Marshal(cleanupReq)
		if err != nil {
			return toolErrorT[jobAcceptedOutput](err)
		}
		jobID, err := s.app.Queue.Enqueue(ctx, &domain.Job{
			UserID:        caller.UserID,
			Type:          domain.JobTypeCleanup,
			RequestParams: params,
		})
		if err != nil {
			return toolErrorT[jobAcceptedOutput](err)
		}
		return nil, jobAcceptedOutput{JobID: jobID}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_cleanup_status",
		Description: "Look up a cleanup job's progress and result by job_id.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in getCleanupStatusInput) (*mcp.CallToolResult, *domain.Job, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[*domain.Job](err)
		}
		job, err := s.app.Queue.Get(ctx, in.JobID, caller.UserID)
		if err != nil {
			return toolErrorT[*domain.Job](err)
		}
		return nil, job, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_cleanup_metrics",
		Description: "Read the running tally of safety checks evaluated and emails protected from cleanup.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in cleanupMetricsInput) (*mcp.CallToolResult, cleanupMetricsOutput, error) {
		if _, err := s.callerFrom(ctx, in.SessionToken); err != nil {
			return toolErrorT[cleanupMetricsOutput](err)
		}
		snap := s.app.SafetyMetrics.Snapshot()
		return nil, cleanupMetricsOutput{TotalChecks: snap.TotalChecks, ProtectedEmails: snap.ProtectedEmails, ByCheckType: snap.ByCheckType}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_cleanup_recommendations",
		Description: "Preview which emails would be archived or deleted by the caller's enabled policies (or a specific policy_id), without executing anything.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in cleanupRecommendationsInput) (*mcp.CallToolResult, *cleanup.Result, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[*cleanup.Result](err)
		}
		result, err := s.app.EvaluateCleanup(ctx, caller.UserID, in.PolicyID, in.MaxEmails)
		if err != nil {
			return toolErrorT[*cleanup.Result](err)
		}
		return nil, result, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_system_health",
		Description: "Report the caller's storage/query/cache metrics alongside the safety-check tally and whether background automation is enabled.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in systemHealthInput) (*mcp.CallToolResult, systemHealthOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[systemHealthOutput](err)
		}
		metrics, err := s.app.Metrics.Snapshot(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[systemHealthOutput](err)
		}
		snap := s.app.SafetyMetrics.Snapshot()
		return nil, systemHealthOutput{
			AutomationEnabled: s.app.Config.AutomationEnabled,
			Metrics:           metrics,
			Safety:            cleanupMetricsOutput{TotalChecks: snap.TotalChecks, ProtectedEmails: snap.ProtectedEmails, ByCheckType: snap.ByCheckType},
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_cleanup_automation_config",
		Description: "Adjust the background automation engine's rate limits and peak-hours pause window. Requires an admin session; takes effect immediately for every user sharing this deployment.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in automationConfigInput) (*mcp.CallToolResult, automationConfigOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[automationConfigOutput](err)
		}
		if !caller.IsAdmin() {
			return toolErrorT[automationConfigOutput](apperr.Forbidden("update_cleanup_automation_config requires an admin session"))
		}
		cfg := s.app.Config
		if in.MaxDeletionsPerHour != 0 {
			cfg.MaxDeletionsPerHour = in.MaxDeletionsPerHour
		}
		if in.MaxDeletionsPerDay != 0 {
			cfg.MaxDeletionsPerDay = in.MaxDeletionsPerDay
		}
		if in.AutomationEnabled != nil {
			cfg.AutomationEnabled = *in.AutomationEnabled
		}
		if in.PauseDuringPeakHours != nil {
			cfg.PauseDuringPeakHours = *in.PauseDuringPeakHours
		}
		if in.PeakHoursStart != 0 {
			cfg.PeakHoursStart = in.PeakHoursStart
		}
		if in.PeakHoursEnd != 0 {
			cfg.PeakHoursEnd = in.PeakHoursEnd
		}
		return nil, automationConfigOutput{
			MaxDeletionsPerHour:  cfg.MaxDeletionsPerHour,
			MaxDeletionsPerDay:   cfg.MaxDeletionsPerDay,
			AutomationEnabled:    cfg.AutomationEnabled,
			PauseDuringPeakHours: cfg.PauseDuringPeakHours,
			PeakHoursStart:       cfg.PeakHoursStart,
			PeakHoursEnd:         cfg.PeakHoursEnd,
		}, nil
	})
}
