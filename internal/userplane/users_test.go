package userplane

import (
	"context"
	"testing"

	"inboxguard/config"
	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
)

func newTestSystem(t *testing.T) *storage.SystemStore {
	t.Helper()
	cfg := &config.Config{DataRoot: t.TempDir()}
	factory, err := storage.NewFactory(cfg)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	t.Cleanup(func() { factory.Close() })
	return factory.System()
}

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	reg := NewRegistry(newTestSystem(t))
	ctx := context.Background()

	u, err := reg.Register(ctx, "first@example.com", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != domain.RoleAdmin {
		t.Errorf("Role = %v, want admin", u.Role)
	}
}

func TestRegisterSecondUserRequiresAdmin(t *testing.T) {
	reg := NewRegistry(newTestSystem(t))
	ctx := context.Background()

	admin, err := reg.Register(ctx, "admin@example.com", nil)
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}

	if _, err := reg.Register(ctx, "second@example.com", nil); err == nil {
		t.Fatal("expected Forbidden without a requester")
	}

	nonAdmin := &domain.UserContext{UserID: "someone-else", Role: domain.RoleUser}
	if _, err := reg.Register(ctx, "second@example.com", nonAdmin); err == nil {
		t.Fatal("expected Forbidden for a non-admin requester")
	}

	adminCtx := &domain.UserContext{UserID: admin.ID, Role: domain.RoleAdmin}
	second, err := reg.Register(ctx, "second@example.com", adminCtx)
	if err != nil {
		t.Fatalf("Register second: %v", err)
	}
	if second.Role != domain.RoleUser {
		t.Errorf("Role = %v, want user", second.Role)
	}
}

func TestRegisterDuplicateEmailRejected(t *testing.T) {
	reg := NewRegistry(newTestSystem(t))
	ctx := context.Background()

	admin, err := reg.Register(ctx, "dup@example.com", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	adminCtx := &domain.UserContext{UserID: admin.ID, Role: domain.RoleAdmin}

	if _, err := reg.Register(ctx, "dup@example.com", adminCtx); err == nil {
		t.Fatal("expected AlreadyExists for a duplicate email")
	}
}

func TestDeregisterRequiresAdmin(t *testing.T) {
	reg := NewRegistry(newTestSystem(t))
	ctx := context.Background()

	admin, err := reg.Register(ctx, "admin@example.com", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	adminCtx := &domain.UserContext{UserID: admin.ID, Role: domain.RoleAdmin}
	other, err := reg.Register(ctx, "other@example.com", adminCtx)
	if err != nil {
		t.Fatalf("Register other: %v", err)
	}

	nonAdmin := &domain.UserContext{UserID: other.ID, Role: domain.RoleUser}
	if err := reg.Deregister(ctx, other.ID, nonAdmin); err == nil {
		t.Fatal("expected Forbidden for a non-admin requester")
	}

	if err := reg.Deregister(ctx, other.ID, adminCtx); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if _, err := reg.Get(ctx, other.ID); err == nil {
		t.Fatal("expected the deregistered user to be gone")
	}
}
