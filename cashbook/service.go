/*
service.go - Transactional cashbook operations

PURPOSE:
  The write path every handler goes through. Each operation saves (or
  updates, or deletes) a cash entry and applies the matching balance
  delta inside one store transaction: either both land or neither does.
  A sale is never recorded with the drawer balance left behind.

EDIT/DELETE SAFETY:
  Revisions and deletions read the PRIOR entry state inside the same
  transaction that writes the change. Reading it outside would let a
  concurrent edit of the same record slip in between and corrupt the
  differential delta.

EVENTS:
  After a successful commit the service publishes a BalanceChanged
  event. Publication is best-effort: a broker failure is logged by the
  publisher's owner, never rolled back into the business operation.
*/
package cashbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/willowysolutions/kanza-accounts-sub002/events"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// ErrInvalidEntry is returned when an entry fails validation before any
// store access.
var ErrInvalidEntry = errors.New("invalid cash entry")

// Service coordinates cash-entry writes with balance updates.
type Service struct {
	store  TxStore
	ledger *ledger.Ledger
	events events.Publisher
}

// NewService wires a cashbook service. publisher may be nil; events are
// then dropped.
func NewService(store TxStore, l *ledger.Ledger, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{store: store, ledger: l, events: publisher}
}

func validate(e CashEntry) error {
	if e.BranchID == "" {
		return fmt.Errorf("%w: branch id required", ErrInvalidEntry)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidEntry)
	}
	if e.Amount.IsNegative() || e.CashAmount.IsNegative() {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidEntry)
	}
	if e.CashAmount.GreaterThan(e.Amount) {
		return fmt.Errorf("%w: cash portion exceeds gross amount", ErrInvalidEntry)
	}
	return nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// RecordEntry persists a new entry and applies its creation delta
// atomically. Returns the stored entry and the receipt it landed on.
func (s *Service) RecordEntry(ctx context.Context, e CashEntry) (*CashEntry, *ledger.BalanceReceipt, error) {
	if err := validate(e); err != nil {
		return nil, nil, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt

	var receipt *ledger.BalanceReceipt
	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveEntry(ctx, e); err != nil {
			return err
		}
		delta, err := CreationDelta(e)
		if err != nil {
			return err
		}
		receipt, err = s.ledger.ApplyDelta(ctx, tx, delta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, e, receipt)
	return &e, receipt, nil
}

// UpdateEntry revises an existing entry and applies the differential delta
// at the original entry date. The prior state is read inside the same
// transaction as the update.
func (s *Service) UpdateEntry(ctx context.Context, e CashEntry) (*CashEntry, *ledger.BalanceReceipt, error) {
	if e.ID == "" {
		return nil, nil, fmt.Errorf("%w: id required", ErrInvalidEntry)
	}
	if err := validate(e); err != nil {
		return nil, nil, err
	}

	var receipt *ledger.BalanceReceipt
	err := s.store.WithTx(ctx, func(tx Store) error {
		prev, err := tx.GetEntry(ctx, e.ID)
		if err != nil {
			return err
		}
		e.CreatedAt = prev.CreatedAt
		e.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return err
		}
		delta, err := RevisionDelta(*prev, e)
		if err != nil {
			return err
		}
		receipt, err = s.ledger.ApplyDelta(ctx, tx, delta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, e, receipt)
	return &e, receipt, nil
}

// DeleteEntry removes an entry and reverses its ledger effect. The receipt
// row for the day stays; only its amount moves back.
func (s *Service) DeleteEntry(ctx context.Context, id string) (*ledger.BalanceReceipt, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id required", ErrInvalidEntry)
	}

	var (
		receipt *ledger.BalanceReceipt
		removed CashEntry
	)
	err := s.store.WithTx(ctx, func(tx Store) error {
		prev, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		removed = *prev
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		delta, err := DeletionDelta(*prev)
		if err != nil {
			return err
		}
		receipt, err = s.ledger.ApplyDelta(ctx, tx, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, removed, receipt)
	return receipt, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Balance returns the branch's carry-forward cash balance as of `at`.
func (s *Service) Balance(ctx context.Context, branchID string, at time.Time) (decimal.Decimal, error) {
	return s.ledger.GetBalance(ctx, s.store, branchID, at)
}

// Entries lists the branch's entries in [from, to]; kind "" matches all.
func (s *Service) Entries(ctx context.Context, branchID string, kind Kind, from, to time.Time) ([]CashEntry, error) {
	return s.store.ListEntries(ctx, branchID, kind, from, to)
}

func (s *Service) publish(ctx context.Context, e CashEntry, r *ledger.BalanceReceipt) {
	if r == nil {
		return
	}
	// Post-commit and best-effort: the publisher decides what to do with
	// failures, the business operation is already durable.
	_ = s.events.Publish(ctx, events.BalanceChanged{
		BranchID:   r.BranchID,
		Day:        r.Day,
		EntryID:    e.ID,
		Kind:       string(e.Kind),
		Balance:    r.Amount,
		OccurredAt: time.Now().UTC(),
	})
}
