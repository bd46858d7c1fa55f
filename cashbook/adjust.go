/*
adjust.go - Signed delta computation per transaction kind

PURPOSE:
  Translates a business-record change (create, revise, delete) into the
  single signed cash delta the ledger should absorb. Pure functions: the
  service reads any prior state inside its transaction and passes it in.

RULES:
  create:  sign(kind) * cash(entry)           at the entry date
  revise:  sign(kind) * (cash(new)-cash(old)) at the ORIGINAL entry date
  delete: -sign(kind) * cash(entry)           at the entry date

  So a credit of 200 debits cash by 200 when issued, debits a further 50
  when raised to 250, credits 50 back when lowered to 150, and credits
  the full outstanding amount back when deleted. Balance receipts are
  never deleted; reversals always arrive as opposing deltas.

REVISION DATE:
  A revision's delta is attributed to the original entry date even if
  the edit also moves the date. Cash already counted on the original day
  stays there; moving history across days is a product decision, not an
  adjuster's.
*/
package cashbook

import (
	"errors"
	"fmt"

	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

var (
	// ErrUnknownKind is returned for an entry whose kind is not recognized.
	ErrUnknownKind = errors.New("unknown cash entry kind")

	// ErrEntryMismatch is returned when a revision pairs two entries that
	// do not describe the same business record.
	ErrEntryMismatch = errors.New("revision entries do not match")
)

// CreationDelta is the ledger effect of recording a new entry.
func CreationDelta(e CashEntry) (ledger.CashDelta, error) {
	if !e.Kind.Valid() {
		return ledger.CashDelta{}, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return ledger.CashDelta{
		BranchID:    e.BranchID,
		EffectiveAt: e.Date,
		Amount:      e.Kind.sign().Mul(e.CashAmount),
	}, nil
}

// RevisionDelta is the differential ledger effect of editing an entry.
// prev must be the stored state read within the same transaction as the
// update, otherwise a concurrent edit can slip between read and write.
func RevisionDelta(prev, next CashEntry) (ledger.CashDelta, error) {
	if !prev.Kind.Valid() {
		return ledger.CashDelta{}, fmt.Errorf("%w: %q", ErrUnknownKind, prev.Kind)
	}
	if prev.ID != next.ID || prev.Kind != next.Kind || prev.BranchID != next.BranchID {
		return ledger.CashDelta{}, fmt.Errorf("%w: %s/%s vs %s/%s",
			ErrEntryMismatch, prev.Kind, prev.ID, next.Kind, next.ID)
	}
	return ledger.CashDelta{
		BranchID:    prev.BranchID,
		EffectiveAt: prev.Date,
		Amount:      prev.Kind.sign().Mul(next.CashAmount.Sub(prev.CashAmount)),
	}, nil
}

// DeletionDelta reverses an entry's full ledger effect.
func DeletionDelta(e CashEntry) (ledger.CashDelta, error) {
	if !e.Kind.Valid() {
		return ledger.CashDelta{}, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return ledger.CashDelta{
		BranchID:    e.BranchID,
		EffectiveAt: e.Date,
		Amount:      e.Kind.sign().Neg().Mul(e.CashAmount),
	}, nil
}
