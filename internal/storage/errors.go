package storage

import (
	"database/sql"
	"errors"
	"strings"

	"inboxguard/pkg/apperr"
)

// requireRowsAffected turns a zero-row UPDATE/DELETE result into a NotFound
// error. Used for every mutation scoped by a WHERE id=? AND user_id=? pair,
// which a cross-user call silently matches zero rows for rather than
// leaking whether the id exists under another owner.
func requireRowsAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.DatabaseError(resource, err)
	}
	if n == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}

// mapErr turns a raw database/sql or sqlite error into the application's
// error taxonomy, the way the persistence adapters this package is modeled
// on turn sql.ErrNoRows into a not-found sentinel before it escapes the
// storage layer.
func mapErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(operation)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return apperr.AlreadyExists(operation)
	}
	return apperr.DatabaseError(operation, err)
}
