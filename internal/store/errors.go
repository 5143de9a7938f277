package store

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors surfaced to callers. Implementations wrap these with
// eris so call sites can use errors.Is while keeping stack context.
var (
	// ErrConflict reports an attempted second result row for a
	// (measurement, method) pair without explicit replace.
	ErrConflict = errors.New("store: result already exists")

	// ErrUnavailable reports that the backing database is unreachable.
	ErrUnavailable = errors.New("store: database unavailable")

	// ErrNotFound reports a missing row where one was required.
	ErrNotFound = errors.New("store: not found")
)

// IsConflict reports whether err stems from a uniqueness conflict, either
// our sentinel or a driver-level unique violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || isUniqueViolation(err)
}

// isUniqueViolation detects driver-level unique constraint violations for
// both backends.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsUnavailable reports whether err indicates the store could not be
// reached at all, as opposed to a per-row failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset by peer",
		"failed to connect",
		"database is locked",
		"closed pool",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
