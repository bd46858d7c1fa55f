/*
Package cashbook records the cash-moving transactions of a fuel-station
branch and keeps the branch's running balance in step with them.

PURPOSE:
  Sales, purchases, credits, expenses, bank deposits, and customer
  payments all move cash. Each is stored as a CashEntry; the cashbook
  service writes the entry and the matching balance delta in one
  transaction so the two can never drift apart.

KEY TYPES (this file):
  - Kind:      the transaction kind, with its ledger sign
  - CashEntry: one business record with its cash-settled portion

CASH VS GROSS:
  A sale's gross amount may be split across cash, card, and UPI; only
  the cash split touches the drawer and therefore the ledger. Purchases
  likewise only hit the ledger for their cash-paid portion. For all
  other kinds the full amount is cash.

SEE ALSO:
  - adjust.go:  kind-specific signed delta computation
  - service.go: transactional write path
*/
package cashbook

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND - Transaction kind and its effect on cash on hand
// =============================================================================

// Kind identifies a cash-moving transaction kind.
type Kind string

const (
	KindSale            Kind = "sale"
	KindPurchase        Kind = "purchase"
	KindCredit          Kind = "credit"
	KindExpense         Kind = "expense"
	KindBankDeposit     Kind = "bank_deposit"
	KindCustomerPayment Kind = "customer_payment"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindPurchase, KindCredit, KindExpense, KindBankDeposit, KindCustomerPayment:
		return true
	}
	return false
}

// sign is the direction a created entry of this kind moves cash on hand:
// sales and customer payments bring cash in; credits given out, expenses,
// bank deposits, and cash purchases take it out.
func (k Kind) sign() decimal.Decimal {
	switch k {
	case KindSale, KindCustomerPayment:
		return decimal.NewFromInt(1)
	default:
		return decimal.NewFromInt(-1)
	}
}

// =============================================================================
// CASH ENTRY - One business record
// =============================================================================

// CashEntry is one cash-moving business record attributed to a branch and
// a business date. Amount is the gross value; CashAmount is the portion
// settled in cash, which is what reaches the ledger.
type CashEntry struct {
	ID         string
	BranchID   string
	Kind       Kind
	Date       time.Time
	Amount     decimal.Decimal
	CashAmount decimal.Decimal
	Reference  string
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaymentSplit is the channel breakdown of a sale's gross amount. Only the
// Cash split reaches the ledger.
type PaymentSplit struct {
	Cash decimal.Decimal
	Card decimal.Decimal
	UPI  decimal.Decimal
}

// Total is the gross sale amount across all channels.
func (p PaymentSplit) Total() decimal.Decimal {
	return p.Cash.Add(p.Card).Add(p.UPI)
}

// NewSale builds a sale entry from its payment split.
func NewSale(branchID string, date time.Time, split PaymentSplit) CashEntry {
	return CashEntry{
		BranchID:   branchID,
		Kind:       KindSale,
		Date:       date,
		Amount:     split.Total(),
		CashAmount: split.Cash,
	}
}

// NewPurchase builds a purchase entry; cashPaid is the portion settled in
// cash, the remainder being supplier credit.
func NewPurchase(branchID string, date time.Time, gross, cashPaid decimal.Decimal) CashEntry {
	return CashEntry{
		BranchID:   branchID,
		Kind:       KindPurchase,
		Date:       date,
		Amount:     gross,
		CashAmount: cashPaid,
	}
}

// NewEntry builds an entry for the fully-cash kinds (credit, expense,
// bank deposit, customer payment).
func NewEntry(kind Kind, branchID string, date time.Time, amount decimal.Decimal) CashEntry {
	return CashEntry{
		BranchID:   branchID,
		Kind:       kind,
		Date:       date,
		Amount:     amount,
		CashAmount: amount,
	}
}
