package userplane

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/logger"
)

const blacklistPrefix = "session:blacklist:"

// claims is the HS256 JWT payload minted for every session. Unlike the
// teacher's Supabase-issued tokens, this service is its own identity
// provider — there is no JWKS to fetch, every token is signed and verified
// with the same secret.
type claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

// SessionManager mints and validates session tokens. A nil redis client
// degrades revocation to "never revoked until InvalidateSession also
// expires the underlying session row" — fine for a single-process
// deployment, matching pkg/ratelimit's same nil-redis degrade.
type SessionManager struct {
	system *storage.SystemStore
	redis  *redis.Client
	secret []byte
	ttl    time.Duration
}

func NewSessionManager(system *storage.SystemStore, redisClient *redis.Client, secret string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{system: system, redis: redisClient, secret: []byte(secret), ttl: ttl}
}

// Create starts a new session for user and returns its signed token. ip and
// agent are recorded for audit purposes only.
func (m *SessionManager) Create(ctx context.Context, user *domain.User, ip, agent string) (*domain.UserSession, string, error) {
	now := time.Now()
	sess := &domain.UserSession{
		SessionID:    uuid.NewString(),
		UserID:       user.ID,
		Created:      now,
		Expires:      now.Add(m.ttl),
		LastAccessed: now,
		IP:           ip,
		Agent:        agent,
		IsValid:      true,
	}
	if err := m.system.CreateSession(ctx, sess); err != nil {
		return nil, "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        sess.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.Expires),
		},
		Role: user.Role,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, "", apperr.InternalWithError(err)
	}
	return sess, signed, nil
}

// Validate parses tokenString, checks the revocation blacklist, and loads
// the underlying session row to confirm it is still valid and unexpired —
// a session invalidated server-side (logout, admin revoke) must stop
// working immediately even if its JWT hasn't technically expired yet.
func (m *SessionManager) Validate(ctx context.Context, tokenString string) (*domain.UserContext, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.InvalidToken("invalid session token")
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" || c.ID == "" {
		return nil, apperr.InvalidToken("malformed session claims")
	}

	if m.isRevoked(ctx, c.ID) {
		return nil, apperr.TokenExpired()
	}

	sess, err := m.system.GetSession(ctx, c.ID)
	if err != nil {
		return nil, apperr.InvalidToken("unknown session")
	}
	if sess.Expired(time.Now()) {
		return nil, apperr.TokenExpired()
	}

	if err := m.system.TouchSession(ctx, sess.SessionID, time.Now()); err != nil {
		logger.Warn("touch session %s: %v", sess.SessionID, err)
	}

	return &domain.UserContext{UserID: c.Subject, SessionID: c.ID, Role: c.Role}, nil
}

// Invalidate marks a session unusable and blacklists its token id so a
// still-unexpired JWT can never be replayed after logout.
func (m *SessionManager) Invalidate(ctx context.Context, sessionID string) error {
	if err := m.system.InvalidateSession(ctx, sessionID); err != nil {
		return err
	}
	if m.redis == nil {
		return nil
	}
	return m.redis.Set(ctx, blacklistPrefix+sessionID, "1", m.ttl).Err()
}

func (m *SessionManager) isRevoked(ctx context.Context, sessionID string) bool {
	if m.redis == nil {
		return false
	}
	n, err := m.redis.Exists(ctx, blacklistPrefix+sessionID).Result()
	if err != nil {
		return false
	}
	return n > 0
}
