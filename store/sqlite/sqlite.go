/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.TxStore, ledger.GoalStore, and insights.Store using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

BALANCE REPRESENTATION:
  Balances are stored in minor units (integer cents). That keeps the
  conditional updates exact:

      UPDATE wallets SET balance_minor = balance_minor + :delta
      WHERE id = :id AND balance_minor + :delta >= 0

  The guard and the mutation are one statement, so there is no window in
  which a concurrent writer can overdraw the account. Zero rows affected
  means either the row is missing or the guard failed; a follow-up read
  classifies which.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for transactions, savings, expenses,
  or insights. Corrections happen via compensating entries, never edits.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of the conditional updates,
  matching the single-writer model SQLite wants. With PostgreSQL, row-level
  locking would carry this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/piggybank.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, hook)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions and the conditional-delta contract
  - ledger/store/memory.go: In-memory implementation for testing
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

	"github.com/piggybank/ledger-engine/insights"
	"github.com/piggybank/ledger-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (directory for transfer receiver resolution)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_phone
		ON users(phone) WHERE phone IS NOT NULL AND phone != '';

	-- Wallets (one per user; balance in minor units, never negative)
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		balance_minor INTEGER NOT NULL DEFAULT 0 CHECK (balance_minor >= 0),
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Goals (saved in minor units, never negative; may exceed target)
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		target_minor INTEGER NOT NULL,
		saved_minor INTEGER NOT NULL DEFAULT 0 CHECK (saved_minor >= 0),
		currency TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'MEDIUM',
		target_date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_user
		ON goals(user_id);

	-- Transactions (immutable audit trail)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		sender_wallet_id TEXT,
		sender_user_id TEXT,
		receiver_wallet_id TEXT,
		receiver_user_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_sender
		ON transactions(sender_user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_receiver
		ON transactions(receiver_user_id, created_at DESC);

	-- Savings (append-only; money set aside)
	CREATE TABLE IF NOT EXISTS savings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		saving_type TEXT NOT NULL,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_savings_user
		ON savings(user_id, date DESC);

	-- Expenses (append-only; goal-funded payments land here)
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		description TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		category TEXT NOT NULL,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_user
		ON expenses(user_id, date DESC);

	-- Insights (advisory tips, written outside the ledger transaction)
	CREATE TABLE IF NOT EXISTS insights (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		insight_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		impact TEXT NOT NULL,
		potential_savings TEXT,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_insights_user
		ON insights(user_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same helpers serve
// the plain store and the transactional view.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNT STORE (ledger.AccountStore interface)
// =============================================================================

// GetOrCreateWallet returns the user's wallet, creating an empty one on
// first use. The insert is ON CONFLICT DO NOTHING against the user_id
// unique index, so concurrent first calls cannot create two wallets.
func (s *Store) GetOrCreateWallet(ctx context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateWallet(ctx, s.db, userID)
}

func (s *Store) getOrCreateWallet(ctx context.Context, db dbtx, userID ledger.UserID) (*ledger.Wallet, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance_minor, currency, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, uuid.NewString(), userID, ledger.DefaultCurrency, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return s.getWalletByUser(ctx, db, userID)
}

// GetWallet returns the user's wallet or ledger.ErrWalletNotFound.
func (s *Store) GetWallet(ctx context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getWalletByUser(ctx, s.db, userID)
}

func (s *Store) getWalletByUser(ctx context.Context, db dbtx, userID ledger.UserID) (*ledger.Wallet, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, balance_minor, currency, created_at, updated_at
		FROM wallets WHERE user_id = ?
	`, userID)
	return scanWallet(row)
}

func (s *Store) getWalletByID(ctx context.Context, db dbtx, walletID ledger.WalletID) (*ledger.Wallet, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, balance_minor, currency, created_at, updated_at
		FROM wallets WHERE id = ?
	`, walletID)
	return scanWallet(row)
}

func scanWallet(row *sql.Row) (*ledger.Wallet, error) {
	var (
		w            ledger.Wallet
		balanceMinor int64
		currency     string
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(&w.ID, &w.UserID, &balanceMinor, &currency, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	w.Balance = fromMinor(balanceMinor, ledger.Currency(currency))
	w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	w.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &w, nil
}

// GetGoal returns a goal only if owned by userID. Ownership is part of the
// WHERE clause, not a separate check.
func (s *Store) GetGoal(ctx context.Context, goalID ledger.GoalID, userID ledger.UserID) (*ledger.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getGoal(ctx, s.db, goalID, userID)
}

func (s *Store) getGoal(ctx context.Context, db dbtx, goalID ledger.GoalID, userID ledger.UserID) (*ledger.Goal, error) {
	rows, err := db.QueryContext(ctx, goalSelect+` WHERE id = ? AND user_id = ?`, goalID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goal: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ledger.ErrGoalNotFound
	}
	return scanGoal(rows)
}

// ApplyBalanceDelta atomically adds delta to the wallet balance. The guard
// and the mutation are a single UPDATE; zero rows affected is classified
// by a follow-up read.
func (s *Store) ApplyBalanceDelta(ctx context.Context, walletID ledger.WalletID, delta ledger.Amount) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyBalanceDelta(ctx, s.db, walletID, delta)
}

func (s *Store) applyBalanceDelta(ctx context.Context, db dbtx, walletID ledger.WalletID, delta ledger.Amount) (*ledger.Wallet, error) {
	deltaMinor := toMinor(delta.Value)

	res, err := db.ExecContext(ctx, `
		UPDATE wallets
		SET balance_minor = balance_minor + ?, updated_at = ?
		WHERE id = ? AND balance_minor + ? >= 0
	`, deltaMinor, time.Now().UTC().Format(time.RFC3339), walletID, deltaMinor)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		wallet, err := s.getWalletByID(ctx, db, walletID)
		if err != nil {
			return nil, err // missing row: ErrWalletNotFound
		}
		return nil, &ledger.InsufficientFundsError{
			Available: wallet.Balance,
			Requested: delta.Neg(),
		}
	}

	return s.getWalletByID(ctx, db, walletID)
}

// ApplySavedDelta is the same contract as ApplyBalanceDelta for Goal.Saved.
func (s *Store) ApplySavedDelta(ctx context.Context, goalID ledger.GoalID, delta ledger.Amount) (*ledger.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applySavedDelta(ctx, s.db, goalID, delta)
}

func (s *Store) applySavedDelta(ctx context.Context, db dbtx, goalID ledger.GoalID, delta ledger.Amount) (*ledger.Goal, error) {
	deltaMinor := toMinor(delta.Value)

	res, err := db.ExecContext(ctx, `
		UPDATE goals
		SET saved_minor = saved_minor + ?, updated_at = ?
		WHERE id = ? AND saved_minor + ? >= 0
	`, deltaMinor, time.Now().UTC().Format(time.RFC3339), goalID, deltaMinor)
	if err != nil {
		return nil, fmt.Errorf("failed to update saved amount: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		goal, err := s.getGoalByID(ctx, db, goalID)
		if err != nil {
			return nil, err // missing row: ErrGoalNotFound
		}
		return nil, &ledger.InsufficientFundsError{
			Available: goal.Saved,
			Requested: delta.Neg(),
		}
	}

	return s.getGoalByID(ctx, db, goalID)
}

func (s *Store) getGoalByID(ctx context.Context, db dbtx, goalID ledger.GoalID) (*ledger.Goal, error) {
	rows, err := db.QueryContext(ctx, goalSelect+` WHERE id = ?`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goal: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ledger.ErrGoalNotFound
	}
	return scanGoal(rows)
}

// ResolveUser finds a user by id or phone number.
func (s *Store) ResolveUser(ctx context.Context, idOrPhone string) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveUser(ctx, s.db, idOrPhone)
}

func (s *Store) resolveUser(ctx context.Context, db dbtx, idOrPhone string) (*ledger.User, error) {
	var (
		u         ledger.User
		phone     sql.NullString
		createdAt string
	)
	key := strings.TrimSpace(idOrPhone)
	err := db.QueryRowContext(ctx, `
		SELECT id, name, phone, created_at FROM users
		WHERE id = ? OR phone = ?
	`, key, key).Scan(&u.ID, &u.Name, &phone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrReceiverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	u.Phone = phone.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// SaveUser upserts a directory entry. Identity management proper is outside
// this module; seeding and tests use this.
func (s *Store) SaveUser(ctx context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, phone, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone
	`, u.ID, u.Name, nullString(u.Phone), time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// TRANSACTION LOG (ledger.TransactionLog interface)
// =============================================================================

// AppendTransaction inserts one audit row. Append-only: there is no code
// path that updates or deletes a transaction.
func (s *Store) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTransaction(ctx, s.db, tx)
}

func (s *Store) appendTransaction(ctx context.Context, db dbtx, tx *ledger.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, amount_minor, currency, tx_type, status, description,
		 sender_wallet_id, sender_user_id, receiver_wallet_id, receiver_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		toMinor(tx.Amount.Value),
		tx.Amount.Currency,
		tx.Type,
		tx.Status,
		tx.Description,
		nullString(string(tx.SenderWalletID)),
		nullString(string(tx.SenderUserID)),
		nullString(string(tx.ReceiverWalletID)),
		nullString(string(tx.ReceiverUserID)),
		tx.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) AppendSaving(ctx context.Context, sv *ledger.Saving) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendSaving(ctx, s.db, sv)
}

func (s *Store) appendSaving(ctx context.Context, db dbtx, sv *ledger.Saving) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO savings (id, user_id, amount_minor, currency, saving_type, date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sv.ID, sv.UserID, toMinor(sv.Amount.Value), sv.Amount.Currency, sv.Type,
		sv.Date.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append saving: %w", err)
	}
	return nil
}

func (s *Store) AppendExpense(ctx context.Context, e *ledger.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendExpense(ctx, s.db, e)
}

func (s *Store) appendExpense(ctx context.Context, db dbtx, e *ledger.Expense) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, description, amount_minor, currency, category, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Description, toMinor(e.Amount.Value), e.Amount.Currency,
		e.Category, e.Date.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append expense: %w", err)
	}
	return nil
}

// ListTransactions returns a user's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID ledger.UserID, limit, offset int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listTransactions(ctx, s.db, userID, limit, offset)
}

func (s *Store) listTransactions(ctx context.Context, db dbtx, userID ledger.UserID, limit, offset int) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, amount_minor, currency, tx_type, status, description,
		       sender_wallet_id, sender_user_id, receiver_wallet_id, receiver_user_id, created_at
		FROM transactions
		WHERE sender_user_id = ? OR receiver_user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []ledger.Transaction{}
	for rows.Next() {
		var (
			tx           ledger.Transaction
			amountMinor  int64
			currency     string
			description  sql.NullString
			senderWallet sql.NullString
			senderUser   sql.NullString
			recvWallet   sql.NullString
			recvUser     sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&tx.ID, &amountMinor, &currency, &tx.Type, &tx.Status,
			&description, &senderWallet, &senderUser, &recvWallet, &recvUser, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Amount = fromMinor(amountMinor, ledger.Currency(currency))
		tx.Description = description.String
		tx.SenderWalletID = ledger.WalletID(senderWallet.String)
		tx.SenderUserID = ledger.UserID(senderUser.String)
		tx.ReceiverWalletID = ledger.WalletID(recvWallet.String)
		tx.ReceiverUserID = ledger.UserID(recvUser.String)
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. Any error from
// the function rolls back every write made through the view.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &txStore{tx: sqlTx, parent: s}
	if err := fn(view); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the view handed to WithTx callbacks. It routes every call
// through the parent's helpers against the open *sql.Tx.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetOrCreateWallet(ctx context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	return ts.parent.getOrCreateWallet(ctx, ts.tx, userID)
}

func (ts *txStore) GetWallet(ctx context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	return ts.parent.getWalletByUser(ctx, ts.tx, userID)
}

func (ts *txStore) GetGoal(ctx context.Context, goalID ledger.GoalID, userID ledger.UserID) (*ledger.Goal, error) {
	return ts.parent.getGoal(ctx, ts.tx, goalID, userID)
}

func (ts *txStore) ApplyBalanceDelta(ctx context.Context, walletID ledger.WalletID, delta ledger.Amount) (*ledger.Wallet, error) {
	return ts.parent.applyBalanceDelta(ctx, ts.tx, walletID, delta)
}

func (ts *txStore) ApplySavedDelta(ctx context.Context, goalID ledger.GoalID, delta ledger.Amount) (*ledger.Goal, error) {
	return ts.parent.applySavedDelta(ctx, ts.tx, goalID, delta)
}

func (ts *txStore) ResolveUser(ctx context.Context, idOrPhone string) (*ledger.User, error) {
	return ts.parent.resolveUser(ctx, ts.tx, idOrPhone)
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return ts.parent.appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) AppendSaving(ctx context.Context, sv *ledger.Saving) error {
	return ts.parent.appendSaving(ctx, ts.tx, sv)
}

func (ts *txStore) AppendExpense(ctx context.Context, e *ledger.Expense) error {
	return ts.parent.appendExpense(ctx, ts.tx, e)
}

func (ts *txStore) ListTransactions(ctx context.Context, userID ledger.UserID, limit, offset int) ([]ledger.Transaction, error) {
	return ts.parent.listTransactions(ctx, ts.tx, userID, limit, offset)
}

// =============================================================================
// GOAL CRUD (ledger.GoalStore interface)
// =============================================================================

const goalSelect = `
	SELECT id, user_id, name, target_minor, saved_minor, currency,
	       priority, target_date, is_active, created_at, updated_at
	FROM goals`

// CreateGoal inserts a new goal. Saved starts at whatever the caller set
// (normally zero); after creation only the delta path may change it.
func (s *Store) CreateGoal(ctx context.Context, g *ledger.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = ledger.GoalID(uuid.NewString())
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals
		(id, user_id, name, target_minor, saved_minor, currency, priority,
		 target_date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.UserID, g.Name, toMinor(g.Target.Value), toMinor(g.Saved.Value),
		g.Target.Currency, g.Priority, g.TargetDate.Format(time.RFC3339),
		g.IsActive, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// ListGoals returns a user's goals, high priority first then nearest
// target date.
func (s *Store) ListGoals(ctx context.Context, userID ledger.UserID, activeOnly bool) ([]ledger.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := goalSelect + ` WHERE user_id = ?`
	args := []any{userID}
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += `
		ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
		         target_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	goals := []ledger.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// UpdateGoal applies the CRUD-writable fields. saved_minor is deliberately
// absent from the SET list: only the ledger's delta path moves saved money.
func (s *Store) UpdateGoal(ctx context.Context, goalID ledger.GoalID, userID ledger.UserID, upd ledger.GoalUpdate) (*ledger.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if upd.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Target != nil {
		set = append(set, "target_minor = ?")
		args = append(args, toMinor(upd.Target.Value))
	}
	if upd.Priority != nil {
		set = append(set, "priority = ?")
		args = append(args, *upd.Priority)
	}
	if upd.TargetDate != nil {
		set = append(set, "target_date = ?")
		args = append(args, upd.TargetDate.Format(time.RFC3339))
	}
	if upd.IsActive != nil {
		set = append(set, "is_active = ?")
		args = append(args, *upd.IsActive)
	}

	args = append(args, goalID, userID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET `+strings.Join(set, ", ")+` WHERE id = ? AND user_id = ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ledger.ErrGoalNotFound
	}

	return s.getGoal(ctx, s.db, goalID, userID)
}

// DeleteGoal removes a goal owned by userID.
func (s *Store) DeleteGoal(ctx context.Context, goalID ledger.GoalID, userID ledger.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = ? AND user_id = ?`, goalID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrGoalNotFound
	}
	return nil
}

func scanGoal(rows *sql.Rows) (*ledger.Goal, error) {
	var (
		g           ledger.Goal
		targetMinor int64
		savedMinor  int64
		currency    string
		targetDate  string
		createdAt   string
		updatedAt   string
	)
	err := rows.Scan(&g.ID, &g.UserID, &g.Name, &targetMinor, &savedMinor,
		&currency, &g.Priority, &targetDate, &g.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}
	cur := ledger.Currency(currency)
	g.Target = fromMinor(targetMinor, cur)
	g.Saved = fromMinor(savedMinor, cur)
	g.TargetDate, _ = time.Parse(time.RFC3339, targetDate)
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &g, nil
}

// =============================================================================
// INSIGHT STORE (insights.Store interface)
// =============================================================================

// AppendInsight persists one advisory tip. These writes happen after the
// ledger unit committed, in the hook goroutine.
func (s *Store) AppendInsight(ctx context.Context, ins *insights.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var potential sql.NullString
	if ins.PotentialSavings != nil {
		potential = sql.NullString{String: ins.PotentialSavings.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights
		(id, user_id, insight_type, title, description, impact, potential_savings, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ins.ID, ins.UserID, ins.Type, ins.Title, ins.Description, ins.Impact,
		potential, ins.IsRead, ins.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append insight: %w", err)
	}
	return nil
}

// ListInsights returns a user's insights, newest first.
func (s *Store) ListInsights(ctx context.Context, userID ledger.UserID, limit int) ([]insights.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, insight_type, title, description, impact,
		       potential_savings, is_read, created_at
		FROM insights
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	out := []insights.Insight{}
	for rows.Next() {
		var (
			ins       insights.Insight
			potential sql.NullString
			createdAt string
		)
		if err := rows.Scan(&ins.ID, &ins.UserID, &ins.Type, &ins.Title,
			&ins.Description, &ins.Impact, &potential, &ins.IsRead, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		if potential.Valid {
			d := ledger.ParseDecimalOrZero(potential.String)
			ins.PotentialSavings = &d
		}
		ins.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, ins)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"insights", "expenses", "savings", "transactions", "goals", "wallets", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// toMinor converts a decimal amount to integer minor units (cents),
// rounding half-up past two decimal places.
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinor(minor int64, currency ledger.Currency) ledger.Amount {
	return ledger.Amount{
		Value:    decimal.NewFromInt(minor).Shift(-2),
		Currency: currency,
	}
}
