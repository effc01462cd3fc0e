package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/categorize"
	"inboxguard/internal/domain"
)

type categorizeEmailsInput struct {
	SessionToken string `json:"session_token"`
	Year         int    `json:"year,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

type jobAcceptedOutput struct {
	JobID int64 `json:"job_id"`
}

// registerCategorizeTools wires categorize_emails, which only enqueues a
// job — its progress and result are read back through get_job_status.
func (s *Server) registerCategorizeTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "categorize_emails",
		Description: "Enqueue an importance/age/Gmail-category analysis run over the caller's emails. Returns a job_id; poll get_job_status for progress.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in categorizeEmailsInput) (*mcp.CallToolResult, jobAcceptedOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[jobAcceptedOutput](err)
		}

		catReq := categorize.Request{ForceRefresh: in.ForceRefresh}
		if in.Year != 0 {
			catReq.Selection = categorize.Selection{Year: in.Year}
		} else {
			catReq.Selection = categorize.Selection{AllUnanalyzed: true}
		}
		params, err := json.Marshal(catReq)
		if err != nil {
			return toolErrorT[jobAcceptedOutput](err)
		}

		jobID, err := s.app.Queue.Enqueue(ctx, &domain.Job{
			UserID:        caller.UserID,
			Type:          domain.JobTypeCategorization,
			RequestParams: params,
		})
		if err != nil {
			return toolErrorT[jobAcceptedOutput](err)
		}
		return nil, jobAcceptedOutput{JobID: jobID}, nil
	})
}
