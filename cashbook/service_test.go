package cashbook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
	"github.com/willowysolutions/kanza-accounts-sub002/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService() (*cashbook.Service, *memory.Store) {
	store := memory.New()
	return cashbook.NewService(store, ledger.NewIST(), nil), store
}

var (
	day1 = time.Date(2024, time.April, 1, 10, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, time.April, 2, 10, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, time.April, 3, 10, 0, 0, 0, time.UTC)
)

// =============================================================================
// END-TO-END SCENARIO
// =============================================================================

func TestService_BranchWeekScenario(t *testing.T) {
	// A fresh branch over three business days:
	//   day 1: cash sale 1000            -> 1000
	//   day 1: expense 300               ->  700
	//   day 2: credit 200 issued         ->  500 (700 carried forward)
	//   day 2: credit revised to 150     ->  550
	//   day 2: credit deleted            ->  700 (net effect reversed)
	//   day 3: bank deposit 400          ->  300 (700 carried forward)

	svc, _ := newTestService()
	ctx := context.Background()

	sale := cashbook.NewSale("branch-x", day1, cashbook.PaymentSplit{Cash: d(1000)})
	_, r, err := svc.RecordEntry(ctx, sale)
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d(1000)), "after sale: %s", r.Amount)

	expense := cashbook.NewEntry(cashbook.KindExpense, "branch-x", day1, d(300))
	_, r, err = svc.RecordEntry(ctx, expense)
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d(700)), "after expense: %s", r.Amount)

	credit := cashbook.NewEntry(cashbook.KindCredit, "branch-x", day2, d(200))
	storedCredit, r, err := svc.RecordEntry(ctx, credit)
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d(500)), "after credit: %s", r.Amount)

	revised := *storedCredit
	revised.Amount = d(150)
	revised.CashAmount = d(150)
	_, r, err = svc.UpdateEntry(ctx, revised)
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d(550)), "after revision: %s", r.Amount)

	r, err = svc.DeleteEntry(ctx, storedCredit.ID)
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d(700)), "after deletion: %s", r.Amount)

	deposit := cashbook.NewEntry(cashbook.KindBankDeposit, "branch-x", day3, d(400))
	_, r, err = svc.RecordEntry(ctx, deposit)
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d(300)), "after deposit: %s", r.Amount)

	balance, err := svc.Balance(ctx, "branch-x", day3)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d(300)))
}

func TestService_CreateThenDelete_ConservesBalance(t *testing.T) {
	// GIVEN: a day balance of 700
	// WHEN: a sale is recorded and then deleted
	// THEN: the balance is back to 700

	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.RecordEntry(ctx, cashbook.NewSale("branch-x", day1, cashbook.PaymentSplit{Cash: d(700)}))
	require.NoError(t, err)

	stored, _, err := svc.RecordEntry(ctx, cashbook.NewSale("branch-x", day1, cashbook.PaymentSplit{Cash: d(250)}))
	require.NoError(t, err)

	r, err := svc.DeleteEntry(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(d(700)), "got %s", r.Amount)
}

func TestService_DeleteKeepsReceiptRow(t *testing.T) {
	// Deleting the only entry of a day reverses the amount but leaves the
	// materialized receipt in place.

	svc, store := newTestService()
	ctx := context.Background()

	stored, _, err := svc.RecordEntry(ctx, cashbook.NewEntry(cashbook.KindExpense, "branch-x", day1, d(100)))
	require.NoError(t, err)

	_, err = svc.DeleteEntry(ctx, stored.ID)
	require.NoError(t, err)

	window, err := ledger.ResolveDay(day1, ledger.IndiaOffsetMinutes)
	require.NoError(t, err)
	r, err := store.FindReceipt(ctx, "branch-x", window)
	require.NoError(t, err)
	require.NotNil(t, r, "receipt row must survive deletion")
	assert.True(t, r.Amount.IsZero())
}

// =============================================================================
// ATOMICITY
// =============================================================================

type vetoStore struct {
	*memory.Store
	vetoSave bool
}

type vetoView struct {
	cashbook.Store
	parent *vetoStore
}

func (vs *vetoStore) WithTx(ctx context.Context, fn func(cashbook.Store) error) error {
	return vs.Store.WithTx(ctx, func(tx cashbook.Store) error {
		return fn(&vetoView{Store: tx, parent: vs})
	})
}

var errVeto = errors.New("injected store failure")

func (vv *vetoView) CreateReceipt(ctx context.Context, r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
	if vv.parent.vetoSave {
		return nil, errVeto
	}
	return vv.Store.CreateReceipt(ctx, r)
}

func TestService_LedgerFailure_RollsBackEntry(t *testing.T) {
	// GIVEN: the receipt write fails inside the transaction
	// WHEN: recording a sale
	// THEN: the whole operation fails and the entry is not persisted

	vs := &vetoStore{Store: memory.New(), vetoSave: true}
	svc := cashbook.NewService(vs, ledger.NewIST(), nil)
	ctx := context.Background()

	sale := cashbook.NewSale("branch-x", day1, cashbook.PaymentSplit{Cash: d(500)})
	sale.ID = "sale-1"
	_, _, err := svc.RecordEntry(ctx, sale)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)

	_, err = vs.GetEntry(ctx, "sale-1")
	assert.ErrorIs(t, err, cashbook.ErrEntryNotFound, "entry must roll back with the receipt")

	balance, err := svc.Balance(ctx, "branch-x", day1)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestService_RecordEntry_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name  string
		entry cashbook.CashEntry
	}{
		{"empty branch", cashbook.NewEntry(cashbook.KindExpense, "", day1, d(10))},
		{"unknown kind", cashbook.NewEntry("refund", "branch-x", day1, d(10))},
		{"zero date", cashbook.NewEntry(cashbook.KindExpense, "branch-x", time.Time{}, d(10))},
		{"negative amount", cashbook.NewEntry(cashbook.KindExpense, "branch-x", day1, d(-10))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.RecordEntry(ctx, tc.entry)
			assert.ErrorIs(t, err, cashbook.ErrInvalidEntry)
		})
	}
}

func TestService_RecordEntry_CashExceedingGross_Rejected(t *testing.T) {
	svc, _ := newTestService()

	e := cashbook.NewPurchase("branch-x", day1, d(100), d(150))
	_, _, err := svc.RecordEntry(context.Background(), e)
	assert.ErrorIs(t, err, cashbook.ErrInvalidEntry)
}

func TestService_UpdateUnknownEntry_NotFound(t *testing.T) {
	svc, _ := newTestService()

	e := cashbook.NewEntry(cashbook.KindExpense, "branch-x", day1, d(10))
	e.ID = "missing"
	_, _, err := svc.UpdateEntry(context.Background(), e)
	assert.ErrorIs(t, err, cashbook.ErrEntryNotFound)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestService_ConcurrentEntries_SameDay_AllCounted(t *testing.T) {
	// 16 staff terminals recording distinct sales for the same branch and
	// day at once: every delta must land.

	svc, _ := newTestService()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale := cashbook.NewSale("branch-x", day1, cashbook.PaymentSplit{Cash: d(25)})
			_, _, err := svc.RecordEntry(ctx, sale)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := svc.Balance(ctx, "branch-x", day1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d(400)), "got %s", balance)
}

// =============================================================================
// LISTING
// =============================================================================

func TestService_Entries_FiltersByKindAndRange(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.RecordEntry(ctx, cashbook.NewSale("branch-x", day1, cashbook.PaymentSplit{Cash: d(100)}))
	require.NoError(t, err)
	_, _, err = svc.RecordEntry(ctx, cashbook.NewEntry(cashbook.KindExpense, "branch-x", day2, d(50)))
	require.NoError(t, err)
	_, _, err = svc.RecordEntry(ctx, cashbook.NewSale("branch-y", day1, cashbook.PaymentSplit{Cash: d(75)}))
	require.NoError(t, err)

	all, err := svc.Entries(ctx, "branch-x", "", day1, day3)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sales, err := svc.Entries(ctx, "branch-x", cashbook.KindSale, day1, day3)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].CashAmount.Equal(d(100)))
}
