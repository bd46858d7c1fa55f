/*
ledger.go - Balance ledger core

PURPOSE:
  Folds signed cash deltas into per-(branch, day) balance receipts.
  This is the only write path to a receipt's amount: business code
  computes a delta, opens a transaction, and hands both to ApplyDelta.

CARRY-FORWARD:
  A day's opening balance is the closing balance of the most recent
  materialized day before it. Receipts are created lazily on first
  touch; a quiet day simply has no row and inherits implicitly.

CONCURRENCY:
  Two callers can race to materialize the same (branch, day). The store
  guards creation with a uniqueness constraint; ApplyDelta treats the
  resulting ErrDuplicateReceipt as "someone else just created it",
  re-reads, and applies the delta as an update instead. The loop is
  bounded; exceeding it reports a MaterializeConflictError.

ORDERING:
  Deltas fold in commit order, not effective-date order. A back-dated
  delta lands on its own day's receipt and does not ripple forward into
  days that were already materialized with an older carry-forward base.

SEE ALSO:
  - store.go:   persistence contract and uniqueness requirements
  - day.go:     calendar-day resolution
  - cashbook:   adjusters that produce the deltas
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// materializeAttempts bounds the create/update retry loop. One retry is
// enough to recover a lost creation race; the extras absorb a concurrent
// creator whose transaction has not become visible yet.
const materializeAttempts = 3

// Ledger applies cash deltas to branch balance receipts. It holds no state
// beyond the day-boundary offset; all balances live in the store.
type Ledger struct {
	offsetMinutes int
}

// New returns a ledger resolving days at the given fixed UTC offset.
func New(offsetMinutes int) *Ledger {
	return &Ledger{offsetMinutes: offsetMinutes}
}

// NewIST returns a ledger on the deployment default offset (+5:30).
func NewIST() *Ledger {
	return New(IndiaOffsetMinutes)
}

// OffsetMinutes returns the configured day-boundary offset.
func (l *Ledger) OffsetMinutes() int {
	return l.offsetMinutes
}

// =============================================================================
// APPLY DELTA - The single write path
// =============================================================================

// ApplyDelta folds one signed delta into the balance receipt for the day
// d.EffectiveAt falls into, creating the receipt with the prior day's
// closing balance as its base when the day has not been touched yet.
//
// tx must be bound to the caller's already-open transaction: the business
// record write and the receipt write commit or roll back together. Because
// of that coupling, ApplyDelta must not be retried outside the enclosing
// transaction - re-running it would double-apply the delta.
func (l *Ledger) ApplyDelta(ctx context.Context, tx Store, d CashDelta) (*BalanceReceipt, error) {
	if d.BranchID == "" {
		return nil, ErrBranchRequired
	}

	window, err := ResolveDay(d.EffectiveAt, l.offsetMinutes)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < materializeAttempts; attempt++ {
		existing, err := tx.FindReceipt(ctx, d.BranchID, window)
		if err != nil {
			return nil, storeErr("find receipt", err)
		}
		if existing != nil {
			updated, err := tx.AddToReceipt(ctx, existing.ID, d.Amount)
			if err != nil {
				return nil, storeErr("update receipt", err)
			}
			return updated, nil
		}

		base, err := l.carryForwardBase(ctx, tx, d.BranchID, window.Start)
		if err != nil {
			return nil, err
		}

		created, err := tx.CreateReceipt(ctx, BalanceReceipt{
			BranchID: d.BranchID,
			Day:      window.Start,
			Amount:   base.Add(d.Amount),
		})
		if errors.Is(err, ErrDuplicateReceipt) {
			// Lost the materialization race: another writer created the
			// day first. Re-read and apply as an update.
			continue
		}
		if err != nil {
			return nil, storeErr("create receipt", err)
		}
		return created, nil
	}

	return nil, &MaterializeConflictError{
		BranchID: d.BranchID,
		Day:      window.Start,
		Attempts: materializeAttempts,
	}
}

// =============================================================================
// GET BALANCE - Carry-forward read
// =============================================================================

// GetBalance returns the branch's cash balance as of the day `at` falls
// into. Reading never materializes a receipt: a day without a row reports
// the closing balance of the most recent materialized day before it, or
// zero when the branch has no receipts at all.
func (l *Ledger) GetBalance(ctx context.Context, s Store, branchID string, at time.Time) (decimal.Decimal, error) {
	if branchID == "" {
		return decimal.Zero, ErrBranchRequired
	}

	window, err := ResolveDay(at, l.offsetMinutes)
	if err != nil {
		return decimal.Zero, err
	}

	r, err := s.FindReceipt(ctx, branchID, window)
	if err != nil {
		return decimal.Zero, storeErr("find receipt", err)
	}
	if r != nil {
		return r.Amount, nil
	}

	return l.carryForwardBase(ctx, s, branchID, window.Start)
}

// carryForwardBase returns the closing balance of the most recent
// materialized day strictly before `before`, or zero for a fresh branch.
func (l *Ledger) carryForwardBase(ctx context.Context, s Store, branchID string, before time.Time) (decimal.Decimal, error) {
	prev, err := s.LatestReceiptBefore(ctx, branchID, before)
	if err != nil {
		return decimal.Zero, storeErr("carry-forward lookup", err)
	}
	if prev == nil {
		return decimal.Zero, nil
	}
	return prev.Amount, nil
}
