// Package userplane is the authentication and authorization boundary every
// MCP tool call passes through: user registration with first-user admin
// bootstrap, JWT-backed sessions with a revocation blacklist, validate_access
// with audit logging, and the FileAccessControlManager guarding exported
// files. It owns the only copy of "who is calling and what may they touch"
// in the service; every other package receives an already-resolved
// domain.UserContext rather than re-deriving identity itself.
package userplane

import (
	"context"
	"time"

	"github.com/google/uuid"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
)

// Registry manages the user record lifecycle: registration (with first-user
// admin bootstrap) and lookup. It never issues or validates sessions itself;
// see SessionManager for that.
type Registry struct {
	system *storage.SystemStore
}

func NewRegistry(system *storage.SystemStore) *Registry {
	return &Registry{system: system}
}

// Register creates a new user. If no user exists yet, the result is an
// admin regardless of requester — the bootstrap case an unauthenticated
// first call must succeed through. Otherwise the caller must already be an
// authenticated admin; requester is nil for the bootstrap call.
func (r *Registry) Register(ctx context.Context, email string, requester *domain.UserContext) (*domain.User, error) {
	if email == "" {
		return nil, apperr.MissingField("email")
	}

	count, err := r.system.UserCount(ctx)
	if err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	} else {
		if requester == nil || !requester.IsAdmin() {
			return nil, apperr.Forbidden("registration requires an authenticated admin session")
		}
	}

	if existing, err := r.system.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperr.AlreadyExists("user")
	}

	now := time.Now()
	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.system.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Registry) Get(ctx context.Context, userID string) (*domain.User, error) {
	return r.system.GetUserByID(ctx, userID)
}

// ListAll returns every registered user.
func (r *Registry) ListAll(ctx context.Context) ([]*domain.User, error) {
	return r.system.ListUsers(ctx)
}

// GetByEmail looks up a user by email, the identity authenticate resolves
// sessions against before an OAuth code ever reaches this service.
func (r *Registry) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.system.GetUserByEmail(ctx, email)
}

// Deregister removes a user's registry row. It does not delete their
// per-user sqlite file — that is an irreversible operation left to an
// explicit administrative cleanup step, not a side effect of this call.
func (r *Registry) Deregister(ctx context.Context, userID string, requester *domain.UserContext) error {
	if requester == nil || !requester.IsAdmin() {
		return apperr.Forbidden("deregistration requires an authenticated admin session")
	}
	return r.system.DeleteUser(ctx, userID)
}
