/*
Package ledger maintains per-branch running cash balances.

PURPOSE:
  Each branch carries one running cash balance, materialized as one
  BalanceReceipt row per (branch, calendar day). Every cash-moving
  business event folds a signed delta into the receipt for its day;
  a day with no receipt yet opens with the previous day's closing
  balance (carry-forward).

KEY TYPES (this file):
  - BalanceReceipt: the persisted per-(branch, day) running balance
  - CashDelta:      one signed adjustment, consumed exactly once

DESIGN PRINCIPLES:
  1. No ambient state: every receipt is addressed by (branch, day),
     owned by the store, and mutated only through Ledger.ApplyDelta.
  2. Precision: amounts are decimal.Decimal, never float64.
  3. Composition: the ledger writes through a caller-supplied
     transaction-scoped Store and never opens transactions itself.

SEE ALSO:
  - day.go:    calendar-day resolution
  - ledger.go: delta application and balance reads
  - store.go:  persistence contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE RECEIPT - Running balance for one branch and one calendar day
// =============================================================================

// BalanceReceipt is the closing cash balance of a branch as of the end of
// one calendar day.
//
// INVARIANTS:
//   - At most one receipt exists per (BranchID, Day).
//   - Day is the window start produced by ResolveDay; immutable once set.
//   - Amount changes only through Ledger.ApplyDelta.
//   - Receipts are never deleted; reversals are applied as opposing deltas.
type BalanceReceipt struct {
	ID        string
	BranchID  string
	Day       time.Time
	Amount    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// CASH DELTA - One signed balance adjustment
// =============================================================================

// CashDelta is a transient, signed adjustment to a branch's cash balance
// caused by a single business event. It is produced by an adjuster and
// consumed exactly once by ApplyDelta.
type CashDelta struct {
	BranchID    string
	EffectiveAt time.Time
	Amount      decimal.Decimal
}
