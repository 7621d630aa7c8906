/*
store.go - Persistence interfaces for accounts and the transaction log

PURPOSE:
  Defines the interface between the engine and the database. Two concerns
  live here: account state (wallets, goals) and the append-only log
  (transactions, savings, expenses, insights).

THE CONDITIONAL-UPDATE CONTRACT:
  ApplyBalanceDelta and ApplySavedDelta are the ONLY legal way to change
  Wallet.Balance and Goal.Saved. Each is one atomic conditional update:

      UPDATE wallets SET balance = balance + :delta
      WHERE id = :id AND balance + :delta >= 0

  If the guard fails the call returns InsufficientFundsError and nothing
  changes. There is deliberately no read-check-write variant: a prior read
  would open a lost-update window under concurrency.

APPEND-ONLY CONTRACT:
  AppendTransaction/AppendSaving/AppendExpense/AppendInsight insert rows
  that are never updated or deleted. No Update or Delete methods exist for
  these tables.

ATOMIC UNITS:
  TxStore.WithTx runs a function against a transactional view of the store.
  Engine operations do all their reads, deltas, and appends inside one
  WithTx call; an error from the function rolls everything back.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - ledger/store: in-memory store for tests and dev

SEE ALSO:
  - engine.go: The only consumer of these interfaces
  - store/sqlite/sqlite.go: Concrete implementation
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Account state + append-only log
// =============================================================================

// Store is the engine's complete view of persistence.
type Store interface {
	AccountStore
	TransactionLog
}

// AccountStore provides durable access to wallets and goals, with the
// conditional-delta updates that carry the balance invariants.
type AccountStore interface {
	// GetOrCreateWallet returns the user's wallet, creating an empty one if
	// absent. Safe under concurrent first call: implementations use an
	// upsert or unique-constraint insert, never read-then-insert.
	GetOrCreateWallet(ctx context.Context, userID UserID) (*Wallet, error)

	// GetWallet returns the user's wallet or ErrWalletNotFound.
	GetWallet(ctx context.Context, userID UserID) (*Wallet, error)

	// GetGoal returns a goal only if owned by userID. A goal owned by
	// someone else reads as ErrGoalNotFound - ownership is part of the
	// read, not a separate check.
	GetGoal(ctx context.Context, goalID GoalID, userID UserID) (*Goal, error)

	// ApplyBalanceDelta atomically adds delta (signed) to the wallet's
	// balance. Returns InsufficientFundsError if the result would be
	// negative, ErrWalletNotFound if the wallet doesn't exist.
	ApplyBalanceDelta(ctx context.Context, walletID WalletID, delta Amount) (*Wallet, error)

	// ApplySavedDelta is the same contract for Goal.Saved.
	ApplySavedDelta(ctx context.Context, goalID GoalID, delta Amount) (*Goal, error)

	// ResolveUser finds a user by id or phone number, for transfer receiver
	// resolution. Returns ErrReceiverNotFound when no user matches.
	ResolveUser(ctx context.Context, idOrPhone string) (*User, error)
}

// TransactionLog is the append-only audit trail. Writes never fail except
// on storage-layer errors, which propagate as-is.
type TransactionLog interface {
	AppendTransaction(ctx context.Context, tx *Transaction) error
	AppendSaving(ctx context.Context, s *Saving) error
	AppendExpense(ctx context.Context, e *Expense) error

	// ListTransactions returns a user's transactions (sent or received),
	// newest first.
	ListTransactions(ctx context.Context, userID UserID, limit, offset int) ([]Transaction, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic units
// =============================================================================

// TxStore wraps Store with transaction support. Every engine operation runs
// inside exactly one WithTx call.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional store view.
	// If fn returns an error, every write made through the view is rolled
	// back. If fn returns nil, the unit commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// GOAL CRUD - Owned by the surface layer, never touches Saved
// =============================================================================

// GoalUpdate carries the CRUD-writable goal fields. Saved is absent on
// purpose: only engine operations move money.
type GoalUpdate struct {
	Name       *string
	Target     *Amount
	Priority   *GoalPriority
	TargetDate *time.Time
	IsActive   *bool
}

// GoalStore is the CRUD surface for goals. Kept separate from AccountStore
// so the engine can't accidentally depend on it. GetGoal carries the same
// ownership-scoped contract as AccountStore.GetGoal.
type GoalStore interface {
	CreateGoal(ctx context.Context, g *Goal) error
	GetGoal(ctx context.Context, goalID GoalID, userID UserID) (*Goal, error)
	ListGoals(ctx context.Context, userID UserID, activeOnly bool) ([]Goal, error)
	UpdateGoal(ctx context.Context, goalID GoalID, userID UserID, upd GoalUpdate) (*Goal, error)
	DeleteGoal(ctx context.Context, goalID GoalID, userID UserID) error
}
