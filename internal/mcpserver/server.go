// Package mcpserver is the thin adapter between inboxguard's internal
// components and the MCP tool surface: one mcp.Tool registration per
// operation, each handler resolving a caller's session, delegating to
// internal/app, and translating an apperr.AppError into an MCP error.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/app"
	"inboxguard/internal/domain"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/logger"
)

const (
	name    = "inboxguard"
	version = "0.1.0"
)

// Server wraps the mcp.Server with the App every handler closes over.
type Server struct {
	app *app.App
	mcp *mcp.Server
}

// New builds the MCP server and registers every tool.
func New(a *app.App) *Server {
	s := &Server{
		app: a,
		mcp: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}
	s.registerUserTools()
	s.registerEmailTools()
	s.registerCategorizeTools()
	s.registerSearchTools()
	s.registerArchiveTools()
	s.registerCleanupTools()
	s.registerJobTools()
	return s
}

// Run serves the registered tools over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// userCtxKey is how authenticate/switch_user's resolved identity rides
// through a single tool call's context.Context.
type userCtxKey struct{}

func withUser(ctx context.Context, uc domain.UserContext) context.Context {
	ctx = context.WithValue(ctx, userCtxKey{}, uc)
	return logger.ContextWithUserID(ctx, uc.UserID)
}

// callerFrom extracts the session token supplied as input.SessionToken and
// resolves it to a domain.UserContext, the pattern every tool but
// authenticate/register_user follows. It returns only the UserContext; it
// does not attach the user id to ctx.
func (s *Server) callerFrom(ctx context.Context, sessionToken string) (domain.UserContext, error) {
	if sessionToken == "" {
		return domain.UserContext{}, apperr.Unauthorized("missing session token")
	}
	uc, err := s.app.Sessions.Validate(ctx, sessionToken)
	if err != nil {
		logger.Warn("session validation failed: %v", err)
		return domain.UserContext{}, err
	}
	return *uc, nil
}

// toolError renders err as the single-line text an MCP client displays,
// preserving apperr's stable error code when present.
func toolError(err error) (*mcp.CallToolResult, any, error) {
	if err == nil {
		return nil, nil, nil
	}
	if ae := apperr.AsAppError(err); ae != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: ae.Code + ": " + ae.Message}},
		}, nil, nil
	}
	logger.Error("unhandled tool error: %v", err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "INTERNAL_ERROR: " + err.Error()}},
	}, nil, nil
}

// toolErrorT is toolError generalized over a handler's typed Out, for the
// common early-return case of "something failed before there's a real
// result to build" — the mcp-go tool signature wants a zero Out value
// alongside the error result, never a nil one.
func toolErrorT[T any](err error) (*mcp.CallToolResult, T, error) {
	var zero T
	res, _, callErr := toolError(err)
	return res, zero, callErr
}
