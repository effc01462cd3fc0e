package userplane

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/logger"
)

// FileManager is the FileAccessControlManager: every file it writes lives
// under <archive_root>/user_<user_id>/…, a path it computes itself, with a
// FileMetadata row (SHA-256 checksum) and a FileAccessPermission granting
// the owner read/delete.
type FileManager struct {
	archiveRoot string
	factory     *storage.Factory
}

func NewFileManager(archiveRoot string, factory *storage.Factory) *FileManager {
	return &FileManager{archiveRoot: archiveRoot, factory: factory}
}

func (m *FileManager) userDir(userID string) string {
	return filepath.Join(m.archiveRoot, "user_"+userID)
}

// Write persists data as originalFilename under userID's archive directory,
// records its FileMetadata and owner grant, and returns the metadata row.
// expiresIn of zero means the file never expires.
func (m *FileManager) Write(ctx context.Context, userID, originalFilename, fileType string, data []byte, expiresIn time.Duration) (*domain.FileMetadata, error) {
	dir := m.userDir(userID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, apperr.InternalWithError(err)
	}

	sum := sha256.Sum256(data)
	id := uuid.NewString()
	path := filepath.Join(dir, id+"_"+originalFilename)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return nil, apperr.InternalWithError(err)
	}

	now := time.Now()
	meta := &domain.FileMetadata{
		ID:               id,
		FilePath:         path,
		OriginalFilename: originalFilename,
		FileType:         fileType,
		SizeBytes:        int64(len(data)),
		SHA256:           hex.EncodeToString(sum[:]),
		UserID:           userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if expiresIn > 0 {
		expires := now.Add(expiresIn)
		meta.ExpiresAt = &expires
	}

	store, err := m.factory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := store.Files().Create(ctx, meta); err != nil {
		return nil, err
	}
	if err := store.Files().Grant(ctx, &domain.FileAccessPermission{
		FileID: meta.ID, Principal: userID, Grant: domain.GrantRead, CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	if err := store.Files().Grant(ctx, &domain.FileAccessPermission{
		FileID: meta.ID, Principal: userID, Grant: domain.GrantDelete, CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	return meta, nil
}

// Read returns a file's bytes if principal holds a read grant on it.
func (m *FileManager) Read(ctx context.Context, userID, fileID, principal string) ([]byte, *domain.FileMetadata, error) {
	store, err := m.factory.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	meta, err := store.Files().Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := store.Files().HasGrant(ctx, fileID, principal, domain.GrantRead)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperr.Forbidden("no read grant on file")
	}
	data, err := os.ReadFile(meta.FilePath)
	if err != nil {
		return nil, nil, apperr.InternalWithError(err)
	}
	return data, meta, nil
}

// CleanupExpiredFiles deletes every file whose expires_at has passed for
// userID: the underlying file (best-effort — a missing file is tolerated),
// its FileMetadata row (not best-effort — a row deletion failure is a real
// error), and writes one audit entry per removal.
func (m *FileManager) CleanupExpiredFiles(ctx context.Context, userID string, now time.Time) (int, error) {
	store, err := m.factory.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	expired, err := store.Files().ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range expired {
		if err := os.Remove(f.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("remove expired file %s: %v", f.FilePath, err)
		}
		if err := store.Files().Delete(ctx, f.ID); err != nil {
			return removed, fmt.Errorf("delete file metadata %s: %w", f.ID, err)
		}
		if err := store.Audit().Record(ctx, &domain.AuditEntry{
			UserID: userID, Action: "cleanup_expired_files", ResourceType: string(domain.ResourceFile),
			ResourceID: f.ID, Success: true, Reason: "expired", Timestamp: now,
		}); err != nil {
			logger.Warn("audit expired file cleanup %s: %v", f.ID, err)
		}
		removed++
	}
	return removed, nil
}
