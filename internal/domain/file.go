package domain

import "time"

// FileMetadata describes one exported file under FileAccessControlManager's
// custody. FilePath is always computed by the manager, never the caller.
type FileMetadata struct {
	ID               string     `json:"id" db:"id"`
	FilePath         string     `json:"file_path" db:"file_path"`
	OriginalFilename string     `json:"original_filename" db:"original_filename"`
	FileType         string     `json:"file_type" db:"file_type"` // json, mbox, csv
	SizeBytes        int64      `json:"size_bytes" db:"size_bytes"`
	SHA256           string     `json:"sha256" db:"sha256"`
	UserID           string     `json:"user_id" db:"user_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// FileGrant is the permission one FileAccessPermission row grants.
type FileGrant string

const (
	GrantRead   FileGrant = "read"
	GrantDelete FileGrant = "delete"
)

// FileAccessPermission governs who may read or delete a file.
type FileAccessPermission struct {
	FileID    string    `json:"file_id" db:"file_id"`
	Principal string    `json:"principal" db:"principal"` // user id or "system"
	Grant     FileGrant `json:"grant" db:"grant"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
