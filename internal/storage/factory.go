// Package storage is inboxguard's data plane: one sqlite file per user
// plus a single system.db shared by
// every user for the registry of users and sessions. It is grounded on the
// knowledge store's sqlite-per-file idiom (WAL journal mode, a busy
// timeout, inline DDL applied on open) combined with the persistence
// adapters' sqlx query style, substituting the pure-Go modernc.org/sqlite
// driver for the cgo one so the module stays cgo-free.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"inboxguard/config"
	"inboxguard/pkg/logger"
)

const driverName = "sqlite"

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

// Factory opens and caches one *UserStore per user. EvictIdle closes and
// drops handles idle for longer than cfg.CacheTTL; nothing in this package
// calls it, and Get never evicts. There is no package-level
// instance: the app wiring constructs one Factory at startup and passes it
// explicitly to whatever needs per-user storage.
type Factory struct {
	usersDir string
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]*cachedStore

	system *SystemStore
}

type cachedStore struct {
	store    *UserStore
	lastUsed time.Time
}

// NewFactory opens (or creates) the shared system database and prepares a
// cache for per-user databases under cfg.UsersDir(). It does not eagerly
// open any user database; those are opened lazily on first Get.
func NewFactory(cfg *config.Config) (*Factory, error) {
	if err := os.MkdirAll(cfg.UsersDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create users dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SystemDBPath()), 0o755); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}

	system, err := openSystemStore(cfg.SystemDBPath())
	if err != nil {
		return nil, err
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Factory{
		usersDir: cfg.UsersDir(),
		ttl:      ttl,
		cache:    make(map[string]*cachedStore),
		system:   system,
	}, nil
}

// System returns the shared registry/session store.
func (f *Factory) System() *SystemStore {
	return f.system
}

// DBPath returns the on-disk path of userID's sqlite file, open or not —
// used by storage-pressure metrics that need the file's size rather than a
// query interface into it.
func (f *Factory) DBPath(userID string) string {
	if userID == "" {
		userID = legacyUserID
	}
	return filepath.Join(f.usersDir, userID+".db")
}

// Get returns the UserStore for userID, opening and migrating its database
// file on first access. An empty userID is resolved to legacyUserID.
func (f *Factory) Get(ctx context.Context, userID string) (*UserStore, error) {
	if userID == "" {
		userID = legacyUserID
	}

	f.mu.Lock()
	if entry, ok := f.cache[userID]; ok {
		entry.lastUsed = time.Now()
		f.mu.Unlock()
		return entry.store, nil
	}
	f.mu.Unlock()

	store, err := f.open(ctx, userID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.cache[userID]; ok {
		// Another goroutine opened it first; keep theirs, close ours.
		store.Close()
		entry.lastUsed = time.Now()
		return entry.store, nil
	}
	f.cache[userID] = &cachedStore{store: store, lastUsed: time.Now()}
	return store, nil
}

func (f *Factory) open(ctx context.Context, userID string) (*UserStore, error) {
	path := filepath.Join(f.usersDir, userID+".db")
	db, err := sqlx.ConnectContext(ctx, driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open user database for %s: %w", userID, err)
	}
	db.SetMaxOpenConns(1) // sqlite allows one writer; avoid SQLITE_BUSY under our own load.

	if _, err := db.ExecContext(ctx, userSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema for %s: %w", userID, err)
	}

	return &UserStore{db: db, userID: userID}, nil
}

// EvictIdle closes and drops cached handles untouched for longer than the
// factory's TTL. Callers run this on a timer; it is not triggered by Get.
func (f *Factory) EvictIdle() {
	cutoff := time.Now().Add(-f.ttl)

	f.mu.Lock()
	defer f.mu.Unlock()
	for userID, entry := range f.cache {
		if entry.lastUsed.Before(cutoff) {
			if err := entry.store.Close(); err != nil {
				logger.Warn("close idle user store %s: %v", userID, err)
			}
			delete(f.cache, userID)
		}
	}
}

// Close closes every cached user database and the system database.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for userID, entry := range f.cache {
		if err := entry.store.Close(); err != nil {
			logger.Warn("close user store %s: %v", userID, err)
		}
		delete(f.cache, userID)
	}
	return f.system.Close()
}
