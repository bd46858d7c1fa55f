// Package events defines the outbound event contract for balance changes.
//
// Publication is an ambient side-channel for dashboards and downstream
// consumers. It happens after the owning transaction commits and is
// best-effort by design; the cashbook never rolls back on publish failure.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceChanged is emitted after a cash entry commit moved a branch's
// balance receipt.
type BalanceChanged struct {
	BranchID   string          `json:"branch_id"`
	Day        time.Time       `json:"day"`
	EntryID    string          `json:"entry_id"`
	Kind       string          `json:"kind"`
	Balance    decimal.Decimal `json:"balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers events to an external channel.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, event any) error { return nil }
