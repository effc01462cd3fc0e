package userplane

import (
	"context"
	"testing"

	"inboxguard/internal/domain"
)

func TestAccessValidatorOwnerMismatchDenied(t *testing.T) {
	v := NewAccessValidator(newTestSystem(t))
	caller := domain.UserContext{UserID: "alice", Role: domain.RoleUser}

	if v.Validate(context.Background(), caller, domain.ResourceJob, "job-1", domain.OpRead, "bob", "", "") {
		t.Fatal("expected owner mismatch to be denied")
	}
}

func TestAccessValidatorOwnMatchAllowed(t *testing.T) {
	v := NewAccessValidator(newTestSystem(t))
	caller := domain.UserContext{UserID: "alice", Role: domain.RoleUser}

	if !v.Validate(context.Background(), caller, domain.ResourceJob, "job-1", domain.OpRead, "alice", "", "") {
		t.Fatal("expected the owner to be allowed")
	}
}

func TestAccessValidatorSystemConfigRequiresAdmin(t *testing.T) {
	v := NewAccessValidator(newTestSystem(t))
	user := domain.UserContext{UserID: "alice", Role: domain.RoleUser}
	admin := domain.UserContext{UserID: "root", Role: domain.RoleAdmin}

	if v.Validate(context.Background(), user, domain.ResourceSystemConfig, "cfg", domain.OpAdmin, "", "", "") {
		t.Fatal("expected a non-admin to be denied system_config access")
	}
	if !v.Validate(context.Background(), admin, domain.ResourceSystemConfig, "cfg", domain.OpAdmin, "", "", "") {
		t.Fatal("expected an admin to be allowed system_config access")
	}
}

func TestAccessValidatorRecordsAudit(t *testing.T) {
	system := newTestSystem(t)
	v := NewAccessValidator(system)
	caller := domain.UserContext{UserID: "alice", Role: domain.RoleUser}

	v.Validate(context.Background(), caller, domain.ResourceJob, "job-1", domain.OpRead, "alice", "10.0.0.1", "ua")
	v.Validate(context.Background(), caller, domain.ResourceJob, "job-2", domain.OpRead, "bob", "10.0.0.1", "ua")

	entries, err := system.ListAudit(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}
}
