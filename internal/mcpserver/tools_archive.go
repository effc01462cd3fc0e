package mcpserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/cleanup"
	"inboxguard/internal/domain"
	"inboxguard/pkg/apperr"
)

// adHocCandidates builds cleanup.Candidate values for a directly-requested
// (not policy-driven) archive/delete, each pinned to a synthetic policy
// carrying only the action/method the executor groups chunks by.
func adHocCandidates(messages []*domain.MessageIndex, action domain.CleanupAction, method domain.CleanupMethod) []cleanup.Candidate {
	policy := &domain.CleanupPolicy{Action: action, Method: method}
	out := make([]cleanup.Candidate, len(messages))
	for i, m := range messages {
		out[i] = cleanup.Candidate{Message: m, Policy: policy, RecommendedAction: action}
	}
	return out
}

func (s *Server) loadMessages(ctx context.Context, userID string, ids []string) ([]*domain.MessageIndex, error) {
	store, err := s.app.Factory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.MessageIndex, 0, len(ids))
	for _, id := range ids {
		m, err := store.Messages().Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

type archiveEmailsInput struct {
	SessionToken string   `json:"session_token"`
	MessageIDs   []string `json:"message_ids"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

type executeOutcomeOutput struct {
	PlannedArchive int `json:"planned_archive"`
	PlannedDelete  int `json:"planned_delete"`
	ChunksRun      int `json:"chunks_run"`
}

func toExecuteOutcome(r *cleanupExecResult) executeOutcomeOutput {
	return executeOutcomeOutput{PlannedArchive: r.PlannedArchive, PlannedDelete: r.PlannedDelete, ChunksRun: len(r.Chunks)}
}

type restoreEmailsInput struct {
	SessionToken    string   `json:"session_token"`
	ArchiveRecordID string   `json:"archive_record_id"`
	RestoreLabels   []string `json:"restore_labels,omitempty"`
}

type createArchiveRuleInput struct {
	SessionToken string                `json:"session_token"`
	Name         string                `json:"name"`
	Criteria     domain.PolicyCriteria `json:"criteria"`
	Method       string                `json:"method" jsonschema:"provider or export"`
}

type createArchiveRuleOutput struct {
	ID string `json:"id"`
}

type listArchiveRulesInput struct {
	SessionToken string `json:"session_token"`
}

type listArchiveRulesOutput struct {
	Rules []*domain.ArchiveRule `json:"rules"`
}

type exportEmailsInput struct {
	SessionToken string   `json:"session_token"`
	MessageIDs   []string `json:"message_ids"`
	Format       string   `json:"format" jsonschema:"json, mbox, or csv"`
}

type exportEmailsOutput struct {
	FileID   string `json:"file_id"`
	Path     string `json:"path"`
	SizeByte int64  `json:"size_bytes"`
}

// registerArchiveTools wires archive_emails, restore_emails,
// create_archive_rule, list_archive_rules, and export_emails.
func (s *Server) registerArchiveTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "archive_emails",
		Description: "Archive the given message ids (add ARCHIVED, remove INBOX). dry_run reports what would happen without mutating anything.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in archiveEmailsInput) (*mcp.CallToolResult, executeOutcomeOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[executeOutcomeOutput](err)
		}
		messages, err := s.loadMessages(ctx, caller.UserID, in.MessageIDs)
		if err != nil {
			return toolErrorT[executeOutcomeOutput](err)
		}
		result, err := s.runExecute(ctx, caller.UserID, adHocCandidates(messages, domain.ActionArchive, domain.MethodProvider), in.DryRun)
		if err != nil {
			return toolErrorT[executeOutcomeOutput](err)
		}
		return nil, toExecuteOutcome(result), nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "restore_emails",
		Description: "Reverse a prior archive by its archive_record_id, re-adding restore_labels (default INBOX).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in restoreEmailsInput) (*mcp.CallToolResult, any, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolError(err)
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolError(err)
		}
		rec, err := store.Archive().GetRecord(ctx, in.ArchiveRecordID)
		if err != nil {
			return toolError(err)
		}
		token, err := s.app.TokenFor(ctx, caller.UserID)
		if err != nil {
			return toolError(err)
		}
		exec, err := s.app.NewExecutor(ctx, caller.UserID)
		if err != nil {
			return toolError(err)
		}
		if err := exec.Restore(ctx, token, rec, in.RestoreLabels); err != nil {
			return toolError(err)
		}
		return nil, map[string]any{"restored": true}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_archive_rule",
		Description: "Create a standing rule that marks matching emails for archiving.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in createArchiveRuleInput) (*mcp.CallToolResult, createArchiveRuleOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[createArchiveRuleOutput](err)
		}
		if in.Name == "" {
			return toolErrorT[createArchiveRuleOutput](apperr.MissingField("name"))
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[createArchiveRuleOutput](err)
		}
		method := domain.MethodProvider
		if in.Method == string(domain.MethodExport) {
			method = domain.MethodExport
		}
		rule := &domain.ArchiveRule{
			ID:        uuid.NewString(),
			UserID:    caller.UserID,
			Name:      in.Name,
			Criteria:  in.Criteria,
			Action:    domain.ActionArchive,
			Method:    method,
			CreatedAt: time.Now(),
		}
		if err := store.Archive().CreateRule(ctx, rule); err != nil {
			return toolErrorT[createArchiveRuleOutput](err)
		}
		return nil, createArchiveRuleOutput{ID: rule.ID}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_archive_rules",
		Description: "List the caller's standing archive rules.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listArchiveRulesInput) (*mcp.CallToolResult, listArchiveRulesOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[listArchiveRulesOutput](err)
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[listArchiveRulesOutput](err)
		}
		rules, err := store.Archive().ListRules(ctx)
		if err != nil {
			return toolErrorT[listArchiveRulesOutput](err)
		}
		return nil, listArchiveRulesOutput{Rules: rules}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export_emails",
		Description: "Write the given message ids to a local json/mbox/csv file and return its file metadata.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in exportEmailsInput) (*mcp.CallToolResult, exportEmailsOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[exportEmailsOutput](err)
		}
		messages, err := s.loadMessages(ctx, caller.UserID, in.MessageIDs)
		if err != nil {
			return toolErrorT[exportEmailsOutput](err)
		}
		format := domain.ExportFormat(in.Format)
		if format == "" {
			format = domain.ExportFormatJSON
		}
		meta, err := s.app.Exporter.Write(ctx, caller.UserID, format, messages, time.Now())
		if err != nil {
			return toolErrorT[exportEmailsOutput](err)
		}
		meta.ID = uuid.NewString()
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[exportEmailsOutput](err)
		}
		if err := store.Files().Create(ctx, meta); err != nil {
			return toolErrorT[exportEmailsOutput](err)
		}
		return nil, exportEmailsOutput{FileID: meta.ID, Path: meta.FilePath, SizeByte: meta.SizeBytes}, nil
	})
}
