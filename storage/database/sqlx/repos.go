// Package sqlxrepos implements the repositories against PostgreSQL. The
// concurrency contracts live here as SQL shapes: uniqueness is a constraint
// hit (23505), state transitions are single conditional UPDATEs, and
// idempotent inserts are ON CONFLICT DO NOTHING.
package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/maendeleo/core"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"

	maxRetries = 3
	retryDelay = 50 * time.Millisecond
)

// uniqueViolation reports whether err is a unique-constraint hit, optionally
// on a specific constraint.
func uniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || string(pqErr.Code) != pqUniqueViolation {
		return false
	}
	return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
}

func transient(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok {
		return false
	}
	switch string(pqErr.Code) {
	case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
		return true
	}
	return false
}

// withRetry retries fn a bounded number of times on transient contention
// before surfacing UnavailableError. fn must be safe to re-apply: every write
// going through here is either a conditional update or a constraint-guarded
// insert.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = fn(); err == nil || !transient(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * retryDelay)
	}
	return core.NewUnavailableError("storage is contended, try again: " + err.Error())
}

// trapNoRowsErr maps psql "no rows" err to the given domain error.
func trapNoRowsErr(err, domainErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return domainErr
	}
	return errors.Wrap(err, msg)
}
