package userplane

import (
	"context"
	"testing"
	"time"

	"inboxguard/internal/domain"
)

func TestSessionCreateAndValidate(t *testing.T) {
	system := newTestSystem(t)
	mgr := NewSessionManager(system, nil, "test-secret", time.Hour)
	ctx := context.Background()

	user := &domain.User{ID: "u1", Email: "u1@example.com", Role: domain.RoleUser}
	sess, token, err := mgr.Create(ctx, user, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty signed token")
	}

	uc, err := mgr.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if uc.UserID != user.ID || uc.SessionID != sess.SessionID {
		t.Errorf("Validate returned %+v, want user %s session %s", uc, user.ID, sess.SessionID)
	}
}

func TestSessionValidateRejectsGarbage(t *testing.T) {
	mgr := NewSessionManager(newTestSystem(t), nil, "test-secret", time.Hour)
	if _, err := mgr.Validate(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("expected an error for a malformed token")
	}
}

func TestSessionInvalidateRejectsFutureUse(t *testing.T) {
	system := newTestSystem(t)
	mgr := NewSessionManager(system, nil, "test-secret", time.Hour)
	ctx := context.Background()

	user := &domain.User{ID: "u1", Email: "u1@example.com", Role: domain.RoleUser}
	sess, token, err := mgr.Create(ctx, user, "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := mgr.Invalidate(ctx, sess.SessionID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, err := mgr.Validate(ctx, token); err == nil {
		t.Fatal("expected Validate to reject a token for an invalidated session")
	}
}

func TestSessionValidateRejectsExpiredRow(t *testing.T) {
	system := newTestSystem(t)
	mgr := NewSessionManager(system, nil, "test-secret", time.Millisecond)
	ctx := context.Background()

	user := &domain.User{ID: "u1", Email: "u1@example.com", Role: domain.RoleUser}
	_, token, err := mgr.Create(ctx, user, "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := mgr.Validate(ctx, token); err == nil {
		t.Fatal("expected Validate to reject an expired session")
	}
}
