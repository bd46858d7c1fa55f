/*
Package postgres provides the PostgreSQL-backed cashbook store.

Same contract as store/sqlite; the differences are dialect-level:
placeholders, NUMERIC/timestamptz columns, and unique-violation
detection via pq error code 23505. Row-level locking inside the
database replaces the process-level mutex the SQLite store carries.
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/willowysolutions/kanza-accounts-sub002/cashbook"
	"github.com/willowysolutions/kanza-accounts-sub002/ledger"
)

// Store implements cashbook.TxStore on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ cashbook.TxStore = (*Store)(nil)

// New opens a PostgreSQL store and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS balance_receipts (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		day TIMESTAMPTZ NOT NULL,
		amount NUMERIC(20,4) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (branch_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_balance_receipts_branch_day_desc
		ON balance_receipts(branch_id, day DESC);

	CREATE TABLE IF NOT EXISTS cash_entries (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		entry_date TIMESTAMPTZ NOT NULL,
		amount NUMERIC(20,4) NOT NULL,
		cash_amount NUMERIC(20,4) NOT NULL,
		reference TEXT,
		note TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cash_entries_branch_date
		ON cash_entries(branch_id, entry_date);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
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
		WHERE branch_id = $1 AND day >= $2 AND day <= $3
	`, branchID, window.Start.UTC(), window.End.UTC())
	return scanReceipt(row)
}

func (s *Store) LatestReceiptBefore(ctx context.Context, branchID string, before time.Time) (*ledger.BalanceReceipt, error) {
	return latestReceiptBefore(ctx, s.db, branchID, before)
}

func latestReceiptBefore(ctx context.Context, db dbtx, branchID string, before time.Time) (*ledger.BalanceReceipt, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, branch_id, day, amount, created_at, updated_at
		FROM balance_receipts
		WHERE branch_id = $1 AND day < $2
		ORDER BY day DESC
		LIMIT 1
	`, branchID, before.UTC())
	return scanReceipt(row)
}

func (s *Store) CreateReceipt(ctx context.Context, r ledger.BalanceReceipt) (*ledger.BalanceReceipt, error) {
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
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.BranchID, r.Day.UTC(), r.Amount, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ledger.ErrDuplicateReceipt
		}
		return nil, fmt.Errorf("failed to create balance receipt: %w", err)
	}
	return &r, nil
}

func (s *Store) AddToReceipt(ctx context.Context, id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	return addToReceipt(ctx, s.db, id, delta)
}

func addToReceipt(ctx context.Context, db dbtx, id string, delta decimal.Decimal) (*ledger.BalanceReceipt, error) {
	// The increment runs inside the database; row-level locking serializes
	// concurrent writers on the same receipt.
	row := db.QueryRowContext(ctx, `
		UPDATE balance_receipts
		SET amount = amount + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, branch_id, day, amount, created_at, updated_at
	`, delta, id)

	r, err := scanReceipt(row)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ledger.ErrReceiptNotFound
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*ledger.BalanceReceipt, error) {
	var r ledger.BalanceReceipt
	err := row.Scan(&r.ID, &r.BranchID, &r.Day, &r.Amount, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan balance receipt: %w", err)
	}
	return &r, nil
}

// =============================================================================
// CASH ENTRIES (cashbook.Store)
// =============================================================================

func (s *Store) SaveEntry(ctx context.Context, e cashbook.CashEntry) error {
	return saveEntry(ctx, s.db, e)
}

func saveEntry(ctx context.Context, db dbtx, e cashbook.CashEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cash_entries
		(id, branch_id, kind, entry_date, amount, cash_amount, reference, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.BranchID, string(e.Kind), e.Date.UTC(), e.Amount, e.CashAmount,
		e.Reference, e.Note, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
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
		FROM cash_entries WHERE id = $1
	`, id)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, cashbook.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) UpdateEntry(ctx context.Context, e cashbook.CashEntry) error {
	return updateEntry(ctx, s.db, e)
}

func updateEntry(ctx context.Context, db dbtx, e cashbook.CashEntry) error {
	res, err := db.ExecContext(ctx, `
		UPDATE cash_entries
		SET branch_id = $1, kind = $2, entry_date = $3, amount = $4, cash_amount = $5,
		    reference = $6, note = $7, updated_at = $8
		WHERE id = $9
	`, e.BranchID, string(e.Kind), e.Date.UTC(), e.Amount, e.CashAmount,
		e.Reference, e.Note, e.UpdatedAt.UTC(), e.ID)
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
	return deleteEntry(ctx, s.db, id)
}

func deleteEntry(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM cash_entries WHERE id = $1`, id)
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
		WHERE branch_id = $1 AND entry_date >= $2 AND entry_date <= $3
	`
	args := []any{branchID, from.UTC(), to.UTC()}
	if kind != "" {
		query += ` AND kind = $4`
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
		e         cashbook.CashEntry
		kind      string
		reference sql.NullString
		note      sql.NullString
	)
	err := row.Scan(&e.ID, &e.BranchID, &kind, &e.Date, &e.Amount, &e.CashAmount,
		&reference, &note, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Kind = cashbook.Kind(kind)
	e.Reference = reference.String
	e.Note = note.String
	return &e, nil
}

// =============================================================================
// TRANSACTIONS (cashbook.TxStore)
// =============================================================================

// WithTx executes fn within one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(cashbook.Store) error) error {
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

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
