package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
)

// FileDAO persists domain.FileMetadata and domain.FileAccessPermission rows
// for the file access control manager.
type FileDAO struct {
	db     *sqlx.DB
	userID string
}

const fileColumns = `id, file_path, original_filename, file_type, size_bytes, sha256, user_id, created_at, updated_at, expires_at`

func (d *FileDAO) Create(ctx context.Context, f *domain.FileMetadata) error {
	f.UserID = d.userID
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.FilePath, f.OriginalFilename, f.FileType, f.SizeBytes, f.SHA256, f.UserID, f.CreatedAt, f.UpdatedAt, f.ExpiresAt)
	return mapErr("create file metadata", err)
}

func (d *FileDAO) Get(ctx context.Context, id string) (*domain.FileMetadata, error) {
	var f domain.FileMetadata
	err := d.db.GetContext(ctx, &f, `SELECT `+fileColumns+` FROM files WHERE id=?`, id)
	if err != nil {
		return nil, mapErr("file metadata", err)
	}
	return &f, nil
}

// ListExpired returns files whose expires_at has passed at instant now, for
// cleanup_expired_files.
func (d *FileDAO) ListExpired(ctx context.Context, now time.Time) ([]*domain.FileMetadata, error) {
	var files []*domain.FileMetadata
	err := d.db.SelectContext(ctx, &files, `SELECT `+fileColumns+` FROM files WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return nil, mapErr("list expired files", err)
	}
	return files, nil
}

func (d *FileDAO) Delete(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM files WHERE id=?`, id)
	if err != nil {
		return mapErr("delete file metadata", err)
	}
	_, err = d.db.ExecContext(ctx, `DELETE FROM file_grants WHERE file_id=?`, id)
	return mapErr("delete file grants", err)
}

// Grant records that principal (a user id, or domain.SystemActor) may
// perform grant on fileID. Re-granting the same triple is a no-op.
func (d *FileDAO) Grant(ctx context.Context, g *domain.FileAccessPermission) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO file_grants (file_id, principal, grant_kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (file_id, principal, grant_kind) DO NOTHING`,
		g.FileID, g.Principal, string(g.Grant), g.CreatedAt)
	return mapErr("grant file access", err)
}

// HasGrant reports whether principal holds grant on fileID.
func (d *FileDAO) HasGrant(ctx context.Context, fileID, principal string, grant domain.FileGrant) (bool, error) {
	var n int
	err := d.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM file_grants WHERE file_id=? AND principal=? AND grant_kind=?`,
		fileID, principal, string(grant))
	if err != nil {
		return false, mapErr("check file grant", err)
	}
	return n > 0, nil
}
