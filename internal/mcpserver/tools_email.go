package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
)

type listEmailsInput struct {
	SessionToken  string `json:"session_token"`
	Year          int    `json:"year,omitempty"`
	GmailCategory string `json:"gmail_category,omitempty"`
	Archived      *bool  `json:"archived,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

type listEmailsOutput struct {
	Emails []messageSummary `json:"emails"`
	Count  int              `json:"count"`
}

// messageSummary is the MCP-facing projection of a domain.MessageIndex —
// full analyzer detail lives behind get_email_details, not every list row.
type messageSummary struct {
	MessageID     string   `json:"message_id"`
	ThreadID      string   `json:"thread_id"`
	Subject       string   `json:"subject"`
	Sender        string   `json:"sender"`
	Date          string   `json:"date"`
	SizeBytes     int64    `json:"size_bytes"`
	Labels        []string `json:"labels"`
	Archived      bool     `json:"archived"`
	GmailCategory string   `json:"gmail_category,omitempty"`
	ImportanceLevel string `json:"importance_level,omitempty"`
}

func summarize(m *domain.MessageIndex) messageSummary {
	out := messageSummary{
		MessageID: m.MessageID,
		ThreadID:  m.ThreadID,
		Subject:   m.Subject,
		Sender:    m.Sender,
		Date:      m.Date.Format("2006-01-02T15:04:05Z07:00"),
		SizeBytes: m.SizeBytes,
		Labels:    m.Labels,
		Archived:  m.Archived,
	}
	if m.Analysis.LabelClassifier != nil {
		out.GmailCategory = string(m.Analysis.LabelClassifier.GmailCategory)
	}
	if m.Analysis.Importance != nil {
		out.ImportanceLevel = string(m.Analysis.Importance.Level)
	}
	return out
}

type getEmailDetailsInput struct {
	SessionToken string `json:"session_token"`
	MessageID    string `json:"message_id"`
}

// registerEmailTools wires list_emails and get_email_details.
func (s *Server) registerEmailTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_emails",
		Description: "List the caller's indexed emails, optionally narrowed by year, Gmail category, or archived state.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listEmailsInput) (*mcp.CallToolResult, listEmailsOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[listEmailsOutput](err)
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[listEmailsOutput](err)
		}
		messages, err := store.Messages().List(ctx, storage.ListFilter{
			Year: in.Year, GmailCategory: in.GmailCategory, Archived: in.Archived,
			Limit: in.Limit, Offset: in.Offset,
		})
		if err != nil {
			return toolErrorT[listEmailsOutput](err)
		}
		out := make([]messageSummary, len(messages))
		for i, m := range messages {
			out[i] = summarize(m)
		}
		return nil, listEmailsOutput{Emails: out, Count: len(out)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_email_details",
		Description: "Fetch one indexed email's full metadata, including every analyzer's scoring.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in getEmailDetailsInput) (*mcp.CallToolResult, *domain.MessageIndex, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[*domain.MessageIndex](err)
		}
		if in.MessageID == "" {
			return toolErrorT[*domain.MessageIndex](apperr.MissingField("message_id"))
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[*domain.MessageIndex](err)
		}
		msg, err := store.Messages().Get(ctx, in.MessageID)
		if err != nil {
			return toolErrorT[*domain.MessageIndex](err)
		}
		return nil, msg, nil
	})
}
