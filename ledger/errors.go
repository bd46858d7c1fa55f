/*
errors.go - Error taxonomy for the balance ledger

PURPOSE:
  All ledger error types in one place. Callers branch on the sentinels
  with errors.Is; structured types carry context and unwrap to them.

CATEGORIES:
  1. Validation errors - rejected before any store access
  2. Materialization conflicts - recovered internally, rarely surfaced
  3. Store errors - propagated so the enclosing transaction rolls back
*/
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTimestamp is returned for a zero or otherwise unusable
	// effective date. Rejected before any store access.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrInvalidOffset is returned for a UTC offset outside [-12h, +14h].
	ErrInvalidOffset = errors.New("invalid utc offset")

	// ErrBranchRequired is returned when a branch id is empty.
	ErrBranchRequired = errors.New("branch id required")

	// ErrDuplicateReceipt is returned by Store.CreateReceipt when a receipt
	// for the same (branch, day) already exists. ApplyDelta treats it as a
	// concurrent materialization and retries as an update.
	ErrDuplicateReceipt = errors.New("balance receipt already exists for branch and day")

	// ErrReceiptNotFound is returned by Store.AddToReceipt for an unknown id.
	ErrReceiptNotFound = errors.New("balance receipt not found")

	// ErrStoreUnavailable is returned when the underlying store or its
	// transaction fails. The caller's enclosing transaction must roll back;
	// nothing is partially applied.
	ErrStoreUnavailable = errors.New("balance store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MaterializeConflictError is returned when the create/update retry loop
// keeps losing the materialization race for one (branch, day). In practice
// this means the store's uniqueness constraint and its lookup disagree.
type MaterializeConflictError struct {
	BranchID string
	Day      time.Time
	Attempts int
}

func (e *MaterializeConflictError) Error() string {
	return fmt.Sprintf("could not materialize balance receipt for branch %s on %s after %d attempts",
		e.BranchID, e.Day.Format("2006-01-02"), e.Attempts)
}

func (e *MaterializeConflictError) Unwrap() error {
	return ErrDuplicateReceipt
}

// storeErr wraps a store failure so callers can branch on ErrStoreUnavailable
// while keeping the underlying cause in the chain.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
