package mcpserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
)

type searchEmailsInput struct {
	SessionToken string                `json:"session_token"`
	Criteria     domain.SearchCriteria `json:"criteria"`
	Limit        int                   `json:"limit,omitempty"`
}

type searchEmailsOutput struct {
	Emails []messageSummary `json:"emails"`
	Count  int              `json:"count"`
}

func criteriaToFilter(c domain.SearchCriteria) storage.ListFilter {
	return storage.ListFilter{
		Year:             c.Year,
		GmailCategory:    c.GmailCategory,
		Archived:         c.Archived,
		Sender:           c.Sender,
		SubjectOrSnippet: c.Query,
	}
}

type saveSearchInput struct {
	SessionToken string                `json:"session_token"`
	Name         string                `json:"name"`
	Criteria     domain.SearchCriteria `json:"criteria"`
}

type saveSearchOutput struct {
	ID string `json:"id"`
}

type listSavedSearchesInput struct {
	SessionToken string `json:"session_token"`
}

type listSavedSearchesOutput struct {
	SavedSearches []*domain.SavedSearch `json:"saved_searches"`
}

// registerSearchTools wires search_emails, save_search, and
// list_saved_searches. Search criteria maps onto storage.ListFilter's
// year/category/archived/sender/subject-or-snippet constraints; there is no
// full-text index over message bodies, since this service never stores one.
func (s *Server) registerSearchTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_emails",
		Description: "Search the caller's indexed emails by year, Gmail category, archived state, sender substring, and/or a subject-or-snippet substring.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchEmailsInput) (*mcp.CallToolResult, searchEmailsOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[searchEmailsOutput](err)
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[searchEmailsOutput](err)
		}
		filter := criteriaToFilter(in.Criteria)
		filter.Limit = in.Limit
		messages, err := store.Messages().List(ctx, filter)
		if err != nil {
			return toolErrorT[searchEmailsOutput](err)
		}
		out := make([]messageSummary, len(messages))
		for i, m := range messages {
			out[i] = summarize(m)
		}
		return nil, searchEmailsOutput{Emails: out, Count: len(out)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "save_search",
		Description: "Save a named search for later reuse via list_saved_searches.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in saveSearchInput) (*mcp.CallToolResult, saveSearchOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[saveSearchOutput](err)
		}
		if in.Name == "" {
			return toolErrorT[saveSearchOutput](apperr.MissingField("name"))
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[saveSearchOutput](err)
		}
		saved := &domain.SavedSearch{
			ID:        uuid.NewString(),
			UserID:    caller.UserID,
			Name:      in.Name,
			Criteria:  in.Criteria,
			CreatedAt: time.Now(),
		}
		if err := store.SavedSearches().Create(ctx, saved); err != nil {
			return toolErrorT[saveSearchOutput](err)
		}
		return nil, saveSearchOutput{ID: saved.ID}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_saved_searches",
		Description: "List the caller's saved searches.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listSavedSearchesInput) (*mcp.CallToolResult, listSavedSearchesOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[listSavedSearchesOutput](err)
		}
		store, err := s.app.Factory.Get(ctx, caller.UserID)
		if err != nil {
			return toolErrorT[listSavedSearchesOutput](err)
		}
		searches, err := store.SavedSearches().List(ctx)
		if err != nil {
			return toolErrorT[listSavedSearchesOutput](err)
		}
		return nil, listSavedSearchesOutput{SavedSearches: searches}, nil
	})
}
