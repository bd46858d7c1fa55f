package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// =============================================================================
// REQUEST DTOs
// =============================================================================

// EntryRequest is the write payload for POST/PUT /api/entries.
// For sales, the split fields carry the channel breakdown and amount is
// derived; for every other kind, amount is the cash value.
type EntryRequest struct {
	BranchID  string           `json:"branch_id"`
	Kind      string           `json:"kind"`
	Date      time.Time        `json:"date"`
	Amount    decimal.Decimal  `json:"amount"`
	Cash      *decimal.Decimal `json:"cash,omitempty"`
	Card      *decimal.Decimal `json:"card,omitempty"`
	UPI       *decimal.Decimal `json:"upi,omitempty"`
	CashPaid  *decimal.Decimal `json:"cash_paid,omitempty"`
	Reference string           `json:"reference,omitempty"`
	Note      string           `json:"note,omitempty"`
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// toEntry maps the request onto a CashEntry, deriving the cash-settled
// portion per kind.
func (r EntryRequest) toEntry() cashbook.CashEntry {
	kind := cashbook.Kind(r.Kind)
	switch kind {
	case cashbook.KindSale:
		return cashbook.NewSale(r.BranchID, r.Date, cashbook.PaymentSplit{
			Cash: deref(r.Cash),
			Card: deref(r.Card),
			UPI:  deref(r.UPI),
		})
	case cashbook.KindPurchase:
		return cashbook.NewPurchase(r.BranchID, r.Date, r.Amount, deref(r.CashPaid))
	default:
		return cashbook.NewEntry(kind, r.BranchID, r.Date, r.Amount)
	}
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

type EntryDTO struct {
	ID         string          `json:"id"`
	BranchID   string          `json:"branch_id"`
	Kind       string          `json:"kind"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	CashAmount decimal.Decimal `json:"cash_amount"`
	Reference  string          `json:"reference,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toEntryDTO(e cashbook.CashEntry) EntryDTO {
	return EntryDTO{
		ID:         e.ID,
		BranchID:   e.BranchID,
		Kind:       string(e.Kind),
		Date:       e.Date,
		Amount:     e.Amount,
		CashAmount: e.CashAmount,
		Reference:  e.Reference,
		Note:       e.Note,
		CreatedAt:  e.CreatedAt,
	}
}

type ReceiptDTO struct {
	ID       string          `json:"id"`
	BranchID string          `json:"branch_id"`
	Day      string          `json:"day"`
	Amount   decimal.Decimal `json:"amount"`
}

func toReceiptDTO(r *ledger.BalanceReceipt) *ReceiptDTO {
	if r == nil {
		return nil
	}
	return &ReceiptDTO{
		ID:       r.ID,
		BranchID: r.BranchID,
		Day:      r.Day.Format("2006-01-02"),
		Amount:   r.Amount,
	}
}

type EntryResponse struct {
	Entry   EntryDTO    `json:"entry"`
	Receipt *ReceiptDTO `json:"receipt,omitempty"`
}

type BalanceDTO struct {
	BranchID string          `json:"branch_id"`
	AsOf     time.Time       `json:"as_of"`
	Balance  decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
