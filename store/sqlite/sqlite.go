/*
Package sqlite provides the SQLite-backed cashbook store.

PURPOSE:
  Primary persistence for balance receipts and cash entries. The same
  patterns apply to PostgreSQL (see store/postgres) - only dialect and
  error-detection details differ.

UNIQUENESS ENFORCEMENT:
  A UNIQUE index on balance_receipts(branch_id, day) is the backstop for
  concurrent first-touch materialization of a day. A violation surfaces
  from CreateReceipt as ledger.ErrDuplicateReceipt, which the ledger
  core recovers by retrying as an update.

DAY KEYS:
  Receipt days are stored as the UTC instant of the local-midnight
  window start, formatted RFC3339. In UTC the format is fixed-width, so
  lexicographic string comparison in SQL matches chronological order.

WAL MODE:
  The database is opened with WAL journaling so readers do not block
  the single writer.

CONCURRENCY:
  A sync.Mutex serializes writers on top of SQLite's own locking; with
  this driver a busy database otherwise surfaces as SQLITE_BUSY errors.

MIGRATION:
  Schema is auto-migrated on New(). A production rollout would pin this
  behind a migration tool instead.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// Store implements cashbook.TxStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ cashbook.TxStore = (*Store)(nil)

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Running balance per branch and calendar day
	CREATE TABLE IF NOT EXISTS balance_receipts (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		day TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one receipt per (branch, day). Concurrent first-touch
	-- creation relies on this constraint to detect the race.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_balance_receipts_branch_day
		ON balance_receipts(branch_id, day);

	-- Carry-forward lookup (latest day before X) is the hot path
	CREATE INDEX IF NOT EXISTS idx_balance_receipts_branch_day_desc
		ON balance_receipts(branch_id, day DESC);

	-- Cash-moving business records
	CREATE TABLE IF NOT EXISTS cash_entries (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		cash_amount TEXT NOT NULL,
		reference TEXT,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cash_entries_branch_date
		ON cash_entries(branch_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_cash_entries_kind
		ON cash_entries(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the common surface of *sql.DB and *sql.Tx the helpers run on.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// =============================================================================
// RECEIPTS (ledger.Store)
// =============================================================================

func (s *Store) FindReceipt(ctx context.Context, branchID string, window ledger.DayWindow) (*ledger.BalanceReceipt, error) {
	return findReceipt(ctx, s.db, branchID, window)
}

func findReceipt(ctx context.Context, db dbtx, branchID string, window ledger.DayWindow) (*ledger.BalanceReceipt, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, branch_id, day, amount, created_at, updated_at
		FROM balance_receipts
		WHERE branch_id = ? AND day >= ? AND day <= ?
	`, branchID, dayKey(window.Start), dayKey(window.End))

	r, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *Store) LatestReceiptBefore(ctx context.Context, branchID string, before time.Time) (*ledger.BalanceReceipt, error) {
	return latestReceiptBefore(ctx, s.db, branchID, before)
}

func latestReceiptBefore(ctx context.Context, db dbtx, branchID string, before time.Time) (*ledger.BalanceReceipt, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, branch_id, day, amount, created_at, updated_at
		FROM balance_receipts
		WHERE branch_id = ? AND day < ?
		ORDER BY day DESC
		LIMIT 1
	`, branchID, dayKey(before))

	r, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *Store) CreateReceipt(ctx context.Context, r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createReceipt(ctx, s.db, r)
}

func createReceipt(ctx context.Context, db dbtx, r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO balance_receipts (id, branch_id, day, amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.BranchID, dayKey(r.Day), r.Amount.String(),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ledger.ErrDuplicateReceipt
		}
		return nil, fmt.Errorf("failed to create balance receipt: %w", err)
	}
	return &r, nil
}

func (s *Store) AddToReceipt(ctx context.Context, id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addToReceipt(ctx, s.db, id, delta)
}

func addToReceipt(ctx context.Context, db dbtx, id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	// Read-modify-write; amounts are stored as decimal strings, so the
	// increment cannot be pushed into SQL without losing precision.
	row := db.QueryRowContext(ctx, `
		SELECT id, branch_id, day, amount, created_at, updated_at
		FROM balance_receipts WHERE id = ?
	`, id)
	r, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Amount = r.Amount.Add(delta)
	r.UpdatedAt = time.Now().UTC()
	_, err = db.ExecContext(ctx, `
		UPDATE balance_receipts SET amount = ?, updated_at = ? WHERE id = ?
	`, r.Amount.String(), r.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance receipt: %w", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*ledger.BalanceReceipt, error) {
	var (
		r         ledger.BalanceReceipt
		day       string
		amount    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&r.ID, &r.BranchID, &day, &amount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, day)
	if err != nil {
		return nil, fmt.Errorf("corrupt day key %q: %w", day, err)
	}
	r.Day = t
	r.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &r, nil
}

// =============================================================================
// CASH ENTRIES (cashbook.Store)
// =============================================================================

func (s *Store) SaveEntry(ctx context.Context, e cashbook.CashEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEntry(ctx, s.db, e)
}

func saveEntry(ctx context.Context, db dbtx, e cashbook.CashEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cash_entries
		(id, branch_id, kind, entry_date, amount, cash_amount, reference, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.BranchID, string(e.Kind), e.Date.UTC().Format(time.RFC3339),
		e.Amount.String(), e.CashAmount.String(), e.Reference, e.Note,
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save cash entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (*cashbook.CashEntry, error) {
	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, db dbtx, id string) (*cashbook.CashEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, branch_id, kind, entry_date, amount, cash_amount, reference, note, created_at, updated_at
		FROM cash_entries WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, cashbook.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) UpdateEntry(ctx context.Context, e cashbook.CashEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEntry(ctx, s.db, e)
}

func updateEntry(ctx context.Context, db dbtx, e cashbook.CashEntry) error {
	res, err := db.ExecContext(ctx, `
		UPDATE cash_entries
		SET branch_id = ?, kind = ?, entry_date = ?, amount = ?, cash_amount = ?,
		    reference = ?, note = ?, updated_at = ?
		WHERE id = ?
	`, e.BranchID, string(e.Kind), e.Date.UTC().Format(time.RFC3339),
		e.Amount.String(), e.CashAmount.String(), e.Reference, e.Note,
		e.UpdatedAt.UTC().Format(time.RFC3339Nano), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update cash entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cashbook.ErrEntryNotFound
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, id)
}

func deleteEntry(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM cash_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cash entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cashbook.ErrEntryNotFound
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, branchID string, kind cashbook.Kind, from, to time.Time) ([]cashbook.CashEntry, error) {
	return listEntries(ctx, s.db, branchID, kind, from, to)
}

func listEntries(ctx context.Context, db dbtx, branchID string, kind cashbook.Kind, from, to time.Time) ([]cashbook.CashEntry, error) {
	query := `
		SELECT id, branch_id, kind, entry_date, amount, cash_amount, reference, note, created_at, updated_at
		FROM cash_entries
		WHERE branch_id = ? AND entry_date >= ? AND entry_date <= ?
	`
	args := []any{branchID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY entry_date ASC, created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash entries: %w", err)
	}
	defer rows.Close()

	var entries []cashbook.CashEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*cashbook.CashEntry, error) {
	var (
		e          cashbook.CashEntry
		kind       string
		date       string
		amount     string
		cashAmount string
		reference  sql.NullString
		note       sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&e.ID, &e.BranchID, &kind, &date, &amount, &cashAmount,
		&reference, &note, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.Kind = cashbook.Kind(kind)
	e.Date, _ = time.Parse(time.RFC3339, date)
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	e.CashAmount, err = decimal.NewFromString(cashAmount)
	if err != nil {
		return nil, fmt.Errorf("corrupt cash amount %q: %w", cashAmount, err)
	}
	e.Reference = reference.String
	e.Note = note.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &e, nil
}

// =============================================================================
// TRANSACTIONS (cashbook.TxStore)
// =============================================================================

// WithTx executes fn within one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(cashbook.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every operation through one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

var _ cashbook.Store = (*txStore)(nil)

func (ts *txStore) FindReceipt(ctx context.Context, branchID string, window ledger.DayWindow) (*ledger.BalanceReceipt, error) {
	return findReceipt(ctx, ts.tx, branchID, window)
}

func (ts *txStore) LatestReceiptBefore(ctx context.Context, branchID string, before time.Time) (*ledger.BalanceReceipt, error) {
	return latestReceiptBefore(ctx, ts.tx, branchID, before)
}

func (ts *txStore) CreateReceipt(ctx context.Context, r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
	return createReceipt(ctx, ts.tx, r)
}

func (ts *txStore) AddToReceipt(ctx context.Context, id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	return addToReceipt(ctx, ts.tx, id, delta)
}

func (ts *txStore) SaveEntry(ctx context.Context, e cashbook.CashEntry) error {
	return saveEntry(ctx, ts.tx, e)
}

func (ts *txStore) GetEntry(ctx context.Context, id string) (*cashbook.CashEntry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) UpdateEntry(ctx context.Context, e cashbook.CashEntry) error {
	return updateEntry(ctx, ts.tx, e)
}

func (ts *txStore) DeleteEntry(ctx context.Context, id string) error {
	return deleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) ListEntries(ctx context.Context, branchID string, kind cashbook.Kind, from, to time.Time) ([]cashbook.CashEntry, error) {
	return listEntries(ctx, ts.tx, branchID, kind, from, to)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
