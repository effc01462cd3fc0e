package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// SystemStore holds the user registry, sessions, and system-scoped audit
// trail in the single database every user shares.
type SystemStore struct {
	db *sqlx.DB
}

func openSystemStore(path string) (*SystemStore, error) {
	db, err := sqlx.Connect(driverName, dsn(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(systemSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SystemStore{db: db}, nil
}

func (s *SystemStore) Close() error { return s.db.Close() }

// UserCount reports how many users are registered, used to decide whether
// the next CreateUser call bootstraps the first admin.
func (s *SystemStore) UserCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, mapErr("count users", err)
	}
	return n, nil
}

// CreateUser inserts a new user. The caller decides Role beforehand (the
// first user ever created becomes admin; see internal/userplane).
func (s *SystemStore) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Role, u.CreatedAt, u.UpdatedAt)
	return mapErr("create user", err)
}

func (s *SystemStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, mapErr("user", err)
	}
	return &u, nil
}

func (s *SystemStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = ?`, email)
	if err != nil {
		return nil, mapErr("user", err)
	}
	return &u, nil
}

// ListUsers returns every registered user, used by the job queue's worker
// loops to discover which per-user databases may hold pending work.
func (s *SystemStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	if err := s.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at ASC`); err != nil {
		return nil, mapErr("list users", err)
	}
	return users, nil
}

// DeleteUser removes a user's registry row. Deleting their per-user
// database file is the caller's responsibility (internal/userplane), since
// SystemStore only ever touches the shared system database.
func (s *SystemStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapErr("delete user", err)
	}
	return requireRowsAffected(res, "user")
}

// CreateSession inserts a new session row.
func (s *SystemStore) CreateSession(ctx context.Context, sess *domain.UserSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, created, expires, last_accessed, ip, agent, is_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID, sess.UserID, sess.Created, sess.Expires, sess.LastAccessed, sess.IP, sess.Agent, sess.IsValid)
	return mapErr("create session", err)
}

func (s *SystemStore) GetSession(ctx context.Context, sessionID string) (*domain.UserSession, error) {
	var sess domain.UserSession
	err := s.db.GetContext(ctx, &sess, `SELECT * FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, mapErr("session", err)
	}
	return &sess, nil
}

// TouchSession bumps last_accessed, used on every validated access so an
// idle-timeout policy (if ever added) has data to act on.
func (s *SystemStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_accessed = ? WHERE session_id = ?`, at, sessionID)
	return mapErr("touch session", err)
}

// InvalidateSession marks a session unusable without deleting its row, so
// an audit trail of past sessions survives logout.
func (s *SystemStore) InvalidateSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET is_valid = 0 WHERE session_id = ?`, sessionID)
	return mapErr("invalidate session", err)
}

// RecordAudit appends one audit_log row. It never returns a "not found" or
// "conflict" error to the caller; a failure to audit is always a database
// error.
func (s *SystemStore) RecordAudit(ctx context.Context, e *domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, resource_type, resource_id, success, reason, ip, agent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Action, e.ResourceType, e.ResourceID, e.Success, e.Reason, e.IP, e.Agent, e.Timestamp)
	return mapErr("record audit", err)
}

// ListAudit returns userID's most recent system-scoped audit entries,
// newest first.
func (s *SystemStore) ListAudit(ctx context.Context, userID string, limit int) ([]*domain.AuditEntry, error) {
	var out []*domain.AuditEntry
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, action, resource_type, resource_id, success, reason, ip, agent, timestamp
		FROM audit_log WHERE user_id=? ORDER BY timestamp DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, mapErr("list audit entries", err)
	}
	return out, nil
}
