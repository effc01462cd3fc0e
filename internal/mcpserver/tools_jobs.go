package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/domain"
)

type listJobsInput struct {
	SessionToken string `json:"session_token"`
	Limit        int    `json:"limit,omitempty"`
}

type listJobsOutput struct {
	Jobs []*domain.Job `json:"jobs"`
}

type getJobStatusInput struct {
	SessionToken string `json:"session_token"`
	JobID        int64  `json:"job_id"`
}

type cancelJobInput struct {
	SessionToken string `json:"session_token"`
	JobID        int64  `json:"job_id"`
}

// registerJobTools wires list_jobs, get_job_status, and cancel_job — thin
// wrappers over the queue that every other job-producing tool (categorize_
// emails, trigger_cleanup) hands its job_id back through.
func (s *Server) registerJobTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List the caller's own jobs plus any system-wide automation jobs visible to them, newest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listJobsInput) (*mcp.CallToolResult, listJobsOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[listJobsOutput](err)
		}
		jobs, err := s.app.Queue.List(ctx, caller.UserID, in.Limit)
		if err != nil {
			return toolErrorT[listJobsOutput](err)
		}
		return nil, listJobsOutput{Jobs: jobs}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_job_status",
		Description: "Fetch one job's current status, progress, and result by job_id.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in getJobStatusInput) (*mcp.CallToolResult, *domain.Job, error) {
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
		Name:        "cancel_job",
		Description: "Cancel a pending or running job by job_id, if it's still cancelable.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in cancelJobInput) (*mcp.CallToolResult, any, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolError(err)
		}
		if err := s.app.Queue.Cancel(ctx, in.JobID, caller.UserID); err != nil {
			return toolError(err)
		}
		return nil, map[string]any{"canceled": true}, nil
	})
}
