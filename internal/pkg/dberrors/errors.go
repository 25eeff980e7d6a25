package dberrors

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure on
// either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// IsDuplicateConstraintError checks for a unique violation on a named
// constraint or index. SQLite reports the offending columns rather than the
// index name, so for SQLite any column named in constraintName matches.
func IsDuplicateConstraintError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintName
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && IsUniqueViolation(err) {
		return strings.Contains(sqliteErr.Error(), constraintName) || constraintColumnsMatch(sqliteErr.Error(), constraintName)
	}
	return false
}

// constraintColumnsMatch checks the "<table>_<column>_key" naming used by the
// migrations against SQLite's "UNIQUE constraint failed: table.column" text.
func constraintColumnsMatch(msg, constraintName string) bool {
	name := strings.TrimSuffix(constraintName, "_key")
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return false
	}
	table, column := name[:idx], name[idx+1:]
	return strings.Contains(msg, table+"."+column)
}
