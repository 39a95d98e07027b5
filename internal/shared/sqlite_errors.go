// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// sqliteConflictMarkers are the driver messages that indicate lock contention
// on the conversations database.
var sqliteConflictMarkers = []string{
	"SQLITE_BUSY",
	"database is locked",
	"database table is locked",
}

// IsSQLiteConflictError reports whether err is a SQLite lock contention error.
// The conversation store surfaces these as store.ErrBusy so callers can tell a
// busy database apart from a broken one.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range sqliteConflictMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
