package marketplace

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrTxConflict signals that a compare-and-swap update inside a transaction
// matched zero rows because another writer got there first. The transaction
// rolls back and the caller re-reads to produce a precise business error.
var ErrTxConflict = errors.New("transaction conflict")

// maxTxAttempts bounds retries on transient contention. A liveness safeguard
// only; correctness never depends on a retry succeeding.
const maxTxAttempts = 3

// InTx runs fn inside a transaction, retrying up to maxTxAttempts times on
// ErrTxConflict or driver-level serialization/busy errors. Exhausted retries
// surface as StateConflictError.
func InTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = db.Transaction(fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return &StateConflictError{Reason: ConflictContention}
}

func retryable(err error) bool {
	if errors.Is(err, ErrTxConflict) {
		return true
	}
	msg := err.Error()
	// Postgres serialization failure / deadlock, sqlite busy.
	return strings.Contains(msg, "SQLSTATE 40001") ||
		strings.Contains(msg, "SQLSTATE 40P01") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// IsUniqueViolation reports whether err is a unique-index violation from the
// driver, so callers can translate it into the matching business error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
