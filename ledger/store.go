/*
store.go - Persistence contract for balance receipts

PURPOSE:
  Defines what the ledger needs from the persistence layer. The ledger
  composes into the CALLER's transaction: every method here operates on
  whatever transaction scope the supplied Store handle is bound to, and
  the ledger itself never begins, commits, or rolls back anything.

UNIQUENESS CONTRACT:
  Implementations MUST enforce a uniqueness constraint on
  (branch_id, day) and surface a violation from CreateReceipt as
  ErrDuplicateReceipt. ApplyDelta relies on that signal to recover from
  concurrent first-touch materialization of the same day.

IMPLEMENTATIONS:
  - store/memory:   in-memory, for tests and dev mode
  - store/sqlite:   SQLite, the primary store
  - store/postgres: PostgreSQL
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the receipt persistence contract. A Store handle is bound to a
// transaction scope supplied by the caller; all four methods observe and
// mutate state within that scope.
type Store interface {
	// FindReceipt returns the receipt whose day falls inside the window,
	// or nil when the day has not been materialized yet.
	FindReceipt(ctx context.Context, branchID string, window DayWindow) (*BalanceReceipt, error)

	// LatestReceiptBefore returns the most recent receipt for the branch
	// with Day strictly before `before`, or nil when none exists. This is
	// the carry-forward base lookup.
	LatestReceiptBefore(ctx context.Context, branchID string, before time.Time) (*BalanceReceipt, error)

	// CreateReceipt persists a new receipt. Returns ErrDuplicateReceipt
	// when a receipt for the same (branch, day) already exists.
	CreateReceipt(ctx context.Context, r BalanceReceipt) (*BalanceReceipt, error)

	// AddToReceipt atomically increments the receipt's amount by delta and
	// returns the updated receipt. Returns ErrReceiptNotFound for an
	// unknown id.
	AddToReceipt(ctx context.Context, id string, delta decimal.Decimal) (*BalanceReceipt, error)
}
