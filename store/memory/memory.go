// Package memory provides an in-memory cashbook store for tests and dev mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type receiptKey struct {
	BranchID string
	Day      int64 // window start, unix millis UTC
}

type Store struct {
	mu         sync.RWMutex
	receipts   map[receiptKey]*ledger.BalanceReceipt
	receiptIDs map[string]receiptKey
	entries    map[string]cashbook.CashEntry
}

func New() *Store {
	return &Store{
		receipts:   make(map[receiptKey]*ledger.BalanceReceipt),
		receiptIDs: make(map[string]receiptKey),
		entries:    make(map[string]cashbook.CashEntry),
	}
}

var _ cashbook.TxStore = (*Store)(nil)

// =============================================================================
// RECEIPTS (ledger.Store)
// =============================================================================

func (m *Store) FindReceipt(ctx context.Context, branchID string, window ledger.DayWindow) (*ledger.BalanceReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findReceiptLocked(branchID, window), nil
}

func (m *Store) findReceiptLocked(branchID string, window ledger.DayWindow) *ledger.BalanceReceipt {
	k := receiptKey{BranchID: branchID, Day: window.Start.UTC().UnixMilli()}
	if r, ok := m.receipts[k]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (m *Store) LatestReceiptBefore(ctx context.Context, branchID string, before time.Time) (*ledger.BalanceReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestBeforeLocked(branchID, before), nil
}

func (m *Store) latestBeforeLocked(branchID string, before time.Time) *ledger.BalanceReceipt {
	var latest *ledger.BalanceReceipt
	for _, r := range m.receipts {
		if r.BranchID != branchID || !r.Day.Before(before) {
			continue
		}
		if latest == nil || r.Day.After(latest.Day) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}

func (m *Store) CreateReceipt(ctx context.Context, r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createReceiptLocked(r)
}

func (m *Store) createReceiptLocked(r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
	k := receiptKey{BranchID: r.BranchID, Day: r.Day.UTC().UnixMilli()}
	if _, exists := m.receipts[k]; exists {
		return nil, ledger.ErrDuplicateReceipt
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.receipts[k] = &r
	m.receiptIDs[r.ID] = k
	cp := r
	return &cp, nil
}

func (m *Store) AddToReceipt(ctx context.Context, id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addToReceiptLocked(id, delta)
}

func (m *Store) addToReceiptLocked(id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	k, ok := m.receiptIDs[id]
	if !ok {
		return nil, ledger.ErrReceiptNotFound
	}
	r := m.receipts[k]
	r.Amount = r.Amount.Add(delta)
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	return &cp, nil
}

// =============================================================================
// CASH ENTRIES (cashbook.Store)
// =============================================================================

func (m *Store) SaveEntry(ctx context.Context, e cashbook.CashEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *Store) GetEntry(ctx context.Context, id string) (*cashbook.CashEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntryLocked(id)
}

func (m *Store) getEntryLocked(id string) (*cashbook.CashEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, cashbook.ErrEntryNotFound
	}
	cp := e
	return &cp, nil
}

func (m *Store) UpdateEntry(ctx context.Context, e cashbook.CashEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateEntryLocked(e)
}

func (m *Store) updateEntryLocked(e cashbook.CashEntry) error {
	if _, ok := m.entries[e.ID]; !ok {
		return cashbook.ErrEntryNotFound
	}
	m.entries[e.ID] = e
	return nil
}

func (m *Store) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEntryLocked(id)
}

func (m *Store) deleteEntryLocked(id string) error {
	if _, ok := m.entries[id]; !ok {
		return cashbook.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *Store) ListEntries(ctx context.Context, branchID string, kind cashbook.Kind, from, to time.Time) ([]cashbook.CashEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []cashbook.CashEntry
	for _, e := range m.entries {
		if e.BranchID != branchID {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx simulates a transaction with a whole-store snapshot: the big lock
// serializes writers and the snapshot restores state when fn fails.
func (m *Store) WithTx(ctx context.Context, fn func(cashbook.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	receipts   map[receiptKey]*ledger.BalanceReceipt
	receiptIDs map[string]receiptKey
	entries    map[string]cashbook.CashEntry
}

func (m *Store) snapshot() memorySnapshot {
	receipts := make(map[receiptKey]*ledger.BalanceReceipt, len(m.receipts))
	for k, v := range m.receipts {
		cp := *v
		receipts[k] = &cp
	}
	ids := make(map[string]receiptKey, len(m.receiptIDs))
	for k, v := range m.receiptIDs {
		ids[k] = v
	}
	entries := make(map[string]cashbook.CashEntry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	return memorySnapshot{receipts: receipts, receiptIDs: ids, entries: entries}
}

func (m *Store) restore(s memorySnapshot) {
	m.receipts = s.receipts
	m.receiptIDs = s.receiptIDs
	m.entries = s.entries
}

// txView runs against the parent with its lock already held by WithTx.
type txView struct {
	parent *Store
}

var _ cashbook.Store = (*txView)(nil)

func (tv *txView) FindReceipt(ctx context.Context, branchID string, window ledger.DayWindow) (*ledger.BalanceReceipt, error) {
	return tv.parent.findReceiptLocked(branchID, window), nil
}

func (tv *txView) LatestReceiptBefore(ctx context.Context, branchID string, before time.Time) (*ledger.BalanceReceipt, error) {
	return tv.parent.latestBeforeLocked(branchID, before), nil
}

func (tv *txView) CreateReceipt(ctx context.Context, r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
	return tv.parent.createReceiptLocked(r)
}

func (tv *txView) AddToReceipt(ctx context.Context, id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	return tv.parent.addToReceiptLocked(id, delta)
}

func (tv *txView) SaveEntry(ctx context.Context, e cashbook.CashEntry) error {
	tv.parent.entries[e.ID] = e
	return nil
}

func (tv *txView) GetEntry(ctx context.Context, id string) (*cashbook.CashEntry, error) {
	return tv.parent.getEntryLocked(id)
}

func (tv *txView) UpdateEntry(ctx context.Context, e cashbook.CashEntry) error {
	return tv.parent.updateEntryLocked(e)
}

func (tv *txView) DeleteEntry(ctx context.Context, id string) error {
	return tv.parent.deleteEntryLocked(id)
}

func (tv *txView) ListEntries(ctx context.Context, branchID string, kind cashbook.Kind, from, to time.Time) ([]cashbook.CashEntry, error) {
	var result []cashbook.CashEntry
	for _, e := range tv.parent.entries {
		if e.BranchID != branchID {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
