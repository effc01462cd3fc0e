package storage

import (
	"github.com/jmoiron/sqlx"
)

// UserStore is the per-user database a Factory hands out. Every method on
// it and its embedded DAOs implicitly scopes to the user it was opened for;
// there is no cross-user query surface here by construction.
type UserStore struct {
	db     *sqlx.DB
	userID string
}

func (u *UserStore) Close() error { return u.db.Close() }

// UserID is the owner this store's file belongs to.
func (u *UserStore) UserID() string { return u.userID }

// Messages returns the message-index DAO for this user.
func (u *UserStore) Messages() *MessageDAO { return &MessageDAO{db: u.db, userID: u.userID} }

// Jobs returns the job-queue persistence DAO for this user.
func (u *UserStore) Jobs() *JobDAO { return &JobDAO{db: u.db, userID: u.userID} }

// Policies returns the cleanup-policy DAO for this user.
func (u *UserStore) Policies() *PolicyDAO { return &PolicyDAO{db: u.db, userID: u.userID} }

// Archive returns the archive rule/record DAO for this user.
func (u *UserStore) Archive() *ArchiveDAO { return &ArchiveDAO{db: u.db, userID: u.userID} }

// Files returns the exported-file metadata DAO for this user.
func (u *UserStore) Files() *FileDAO { return &FileDAO{db: u.db, userID: u.userID} }

// Access returns the access-pattern tracking DAO for this user.
func (u *UserStore) Access() *AccessDAO { return &AccessDAO{db: u.db, userID: u.userID} }

// Audit returns the per-user audit-log DAO.
func (u *UserStore) Audit() *AuditDAO { return &AuditDAO{db: u.db, userID: u.userID} }

// SavedSearches returns the saved-search DAO for this user.
func (u *UserStore) SavedSearches() *SavedSearchDAO { return &SavedSearchDAO{db: u.db, userID: u.userID} }
