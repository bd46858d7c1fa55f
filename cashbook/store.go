/*
store.go - Persistence contract for cash entries

PURPOSE:
  Extends the ledger's receipt contract with cash-entry persistence and
  transaction scoping. A store handed out by WithTx satisfies
  ledger.Store too, so the same handle carries both the business write
  and the receipt write through one transaction.
*/
package cashbook

import (
	"context"
	"errors"
	"time"

	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// ErrEntryNotFound is returned for an unknown entry id.
var ErrEntryNotFound = errors.New("cash entry not found")

// Store persists cash entries alongside balance receipts. All methods
// observe the transaction scope the handle is bound to.
type Store interface {
	ledger.Store

	// SaveEntry persists a new entry.
	SaveEntry(ctx context.Context, e CashEntry) error

	// GetEntry returns the entry, or ErrEntryNotFound.
	GetEntry(ctx context.Context, id string) (*CashEntry, error)

	// UpdateEntry overwrites the stored entry. ErrEntryNotFound if absent.
	UpdateEntry(ctx context.Context, e CashEntry) error

	// DeleteEntry removes the entry. ErrEntryNotFound if absent.
	DeleteEntry(ctx context.Context, id string) error

	// ListEntries returns the branch's entries with Date in [from, to],
	// ordered by Date then creation time. kind == "" matches all kinds.
	ListEntries(ctx context.Context, branchID string, kind Kind, from, to time.Time) ([]CashEntry, error)
}

// TxStore opens transaction scopes over a Store.
type TxStore interface {
	Store

	// WithTx runs fn inside one transaction. The Store passed to fn is
	// bound to that transaction; returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
