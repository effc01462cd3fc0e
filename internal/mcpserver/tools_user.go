package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"inboxguard/internal/domain"
	"inboxguard/pkg/apperr"
)

type authenticateInput struct {
	Email string `json:"email" jsonschema:"Gmail address to authenticate"`
	Code  string `json:"code,omitempty" jsonschema:"OAuth authorization code from the consent redirect; omit to obtain the consent URL"`
}

type authenticateOutput struct {
	Success   bool   `json:"success"`
	AuthURL   string `json:"auth_url,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Token     string `json:"session_token,omitempty"`
}

type registerUserInput struct {
	SessionToken string `json:"session_token,omitempty" jsonschema:"Admin session token; omitted for the very first user"`
	Email        string `json:"email" jsonschema:"Gmail address to register"`
}

type registerUserOutput struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type listUsersInput struct {
	SessionToken string `json:"session_token"`
}

type listUsersOutput struct {
	Users []userSummary `json:"users"`
}

type userSummary struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type getUserProfileInput struct {
	SessionToken string `json:"session_token"`
	UserID       string `json:"user_id,omitempty" jsonschema:"Defaults to the caller's own id"`
}

type switchUserInput struct {
	SessionToken string `json:"session_token" jsonschema:"An admin session token"`
	TargetUserID string `json:"target_user_id" jsonschema:"User to impersonate a session for"`
}

// registerUserTools wires authenticate, register_user, list_users,
// get_user_profile, and switch_user — the only tools an unauthenticated
// caller may ever reach (authenticate, and register_user for the bootstrap
// admin case).
func (s *Server) registerUserTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "authenticate",
		Description: "Start or complete Google OAuth for a Gmail address. Without a code, returns a consent URL; with the code from that redirect, completes sign-in and returns a session.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in authenticateInput) (*mcp.CallToolResult, authenticateOutput, error) {
		if in.Email == "" {
			return toolErrorT[authenticateOutput](apperr.MissingField("email"))
		}

		if in.Code == "" {
			return nil, authenticateOutput{Success: true, AuthURL: s.app.OAuth.AuthURL(in.Email)}, nil
		}

		user, err := s.app.Registry.GetByEmail(ctx, in.Email)
		if err != nil {
			user, err = s.app.Registry.Register(ctx, in.Email, nil)
			if err != nil {
				return toolErrorT[authenticateOutput](err)
			}
		}

		if err := s.app.OAuth.Exchange(ctx, user.ID, in.Code); err != nil {
			return toolErrorT[authenticateOutput](err)
		}

		_, token, err := s.app.Sessions.Create(ctx, user, "", "")
		if err != nil {
			return toolErrorT[authenticateOutput](err)
		}
		return nil, authenticateOutput{Success: true, UserID: user.ID, Token: token}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "register_user",
		Description: "Register a new Gmail account owner. The very first registration bootstraps the admin account and needs no session; every later registration requires an admin session.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in registerUserInput) (*mcp.CallToolResult, registerUserOutput, error) {
		var requester *domain.UserContext
		if in.SessionToken != "" {
			uc, err := s.callerFrom(ctx, in.SessionToken)
			if err != nil {
				return toolErrorT[registerUserOutput](err)
			}
			requester = &uc
		}
		user, err := s.app.Registry.Register(ctx, in.Email, requester)
		if err != nil {
			return toolErrorT[registerUserOutput](err)
		}
		return nil, registerUserOutput{UserID: user.ID, Email: user.Email, Role: string(user.Role)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_users",
		Description: "List every registered user. Requires an admin session.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listUsersInput) (*mcp.CallToolResult, listUsersOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[listUsersOutput](err)
		}
		if !s.app.Access.Validate(ctx, caller, domain.ResourceSystemConfig, "", domain.OpRead, "", "", "") {
			return toolErrorT[listUsersOutput](apperr.Forbidden("list_users requires an admin session"))
		}
		users, err := s.app.Registry.ListAll(ctx)
		if err != nil {
			return toolErrorT[listUsersOutput](err)
		}
		out := make([]userSummary, len(users))
		for i, u := range users {
			out[i] = userSummary{UserID: u.ID, Email: u.Email, Role: string(u.Role)}
		}
		return nil, listUsersOutput{Users: out}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_user_profile",
		Description: "Fetch one user's profile. A non-admin caller may only fetch their own.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in getUserProfileInput) (*mcp.CallToolResult, userSummary, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[userSummary](err)
		}
		targetID := in.UserID
		if targetID == "" {
			targetID = caller.UserID
		}
		if targetID != caller.UserID && !caller.IsAdmin() {
			return toolErrorT[userSummary](apperr.Forbidden("cannot view another user's profile"))
		}
		user, err := s.app.Registry.Get(ctx, targetID)
		if err != nil {
			return toolErrorT[userSummary](err)
		}
		return nil, userSummary{UserID: user.ID, Email: user.Email, Role: string(user.Role)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "switch_user",
		Description: "Mint a session for target_user_id on behalf of an admin caller, for support/debugging impersonation.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in switchUserInput) (*mcp.CallToolResult, authenticateOutput, error) {
		caller, err := s.callerFrom(ctx, in.SessionToken)
		if err != nil {
			return toolErrorT[authenticateOutput](err)
		}
		if !caller.IsAdmin() {
			return toolErrorT[authenticateOutput](apperr.Forbidden("switch_user requires an admin session"))
		}
		target, err := s.app.Registry.Get(ctx, in.TargetUserID)
		if err != nil {
			return toolErrorT[authenticateOutput](err)
		}
		sess, token, err := s.app.Sessions.Create(ctx, target, "", "")
		if err != nil {
			return toolErrorT[authenticateOutput](err)
		}
		return nil, authenticateOutput{Success: true, UserID: target.ID, SessionID: sess.SessionID, Token: token}, nil
	})
}
