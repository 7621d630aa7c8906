/*
Package ledger provides the wallet and goal fund-movement engine.

PURPOSE:
  This package contains the types and operations for moving money between
  a user's wallet, their savings goals, and the audit trail of transactions.
  Every movement is an atomic unit: the account mutations and the log append
  succeed together or not at all.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity tagged with a currency
  - Wallet: A user's general-purpose cash balance (one per user)
  - Goal: A named savings target with its own running `saved` balance
  - Transaction: An immutable audit record of one money movement
  - Saving: A lightweight record of money set aside (savings-rate reporting)
  - Expense: A record of money leaving the system (goal payments)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Single writer: Wallet.Balance and Goal.Saved are mutated only through
     the store's conditional-delta methods, never by direct field writes
  3. Auditability: Every successful movement appends a Transaction
  4. No currency conversion: Currency is a tag, not an exchange unit

SEE ALSO:
  - store.go: Persistence interfaces and the conditional-update contract
  - engine.go: The atomic operations
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Decimal quantity with a currency tag
// =============================================================================

// Currency is an ISO 4217 code. The engine performs no conversion; it only
// refuses to mix currencies within one operation.
type Currency string

const DefaultCurrency Currency = "USD"

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Currency: currency}
}

// ParseDecimalOrZero parses s, returning zero on malformed input.
func ParseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type WalletID string
type GoalID string
type TransactionID string

// =============================================================================
// WALLET - One per user, lazily created
// =============================================================================

// Wallet is a user's general-purpose cash balance.
//
// INVARIANT: Balance >= 0 at every observable point. The store's conditional
// update enforces this; nothing else is allowed to write Balance.
type Wallet struct {
	ID        WalletID
	UserID    UserID
	Balance   Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// GOAL - Named savings target
// =============================================================================

type GoalPriority string

const (
	PriorityLow    GoalPriority = "LOW"
	PriorityMedium GoalPriority = "MEDIUM"
	PriorityHigh   GoalPriority = "HIGH"
)

// Goal is a savings target funded from (or drained back to) the wallet.
//
// INVARIANT: Saved >= 0. Saved MAY exceed Target - over-funding is allowed
// and simply reads as >100% progress.
//
// Saved is mutated exclusively by engine operations. The CRUD surface owns
// every other field.
type Goal struct {
	ID         GoalID
	UserID     UserID
	Name       string
	Target     Amount
	Saved      Amount
	Priority   GoalPriority
	TargetDate time.Time
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Progress returns Saved/Target as a percentage. Over-funded goals report
// more than 100.
func (g *Goal) Progress() decimal.Decimal {
	if g.Target.Value.IsZero() {
		return decimal.Zero
	}
	return g.Saved.Value.Div(g.Target.Value).Mul(decimal.NewFromInt(100))
}

// Remaining returns Target - Saved, floored at zero for over-funded goals.
func (g *Goal) Remaining() Amount {
	r := g.Target.Sub(g.Saved)
	if r.IsNegative() {
		return r.Zero()
	}
	return r
}

// =============================================================================
// TRANSACTION - Immutable audit record of one money movement
// =============================================================================

type TransactionType string

const (
	TxDeposit    TransactionType = "DEPOSIT"    // money entering a wallet (receiver only)
	TxWithdrawal TransactionType = "WITHDRAWAL" // money leaving a wallet (sender only)
	TxTransfer   TransactionType = "TRANSFER"   // wallet-to-wallet (sender + receiver)
	TxPayment    TransactionType = "PAYMENT"    // money leaving the system (sender only)
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// Transaction records one committed money movement. Append-only: never
// updated, never deleted. The engine only ever persists COMPLETED rows -
// a failed operation leaves no row at all.
//
// INVARIANT: the populated sender/receiver pair is consistent with Type:
// DEPOSIT has receiver only, WITHDRAWAL has sender only, TRANSFER has both.
type Transaction struct {
	ID          TransactionID
	Amount      Amount
	Type        TransactionType
	Status      TransactionStatus
	Description string

	SenderWalletID   WalletID
	SenderUserID     UserID
	ReceiverWalletID WalletID
	ReceiverUserID   UserID

	CreatedAt time.Time
}

// =============================================================================
// SAVING - Money set aside, distinct from the audit Transaction
// =============================================================================

type SavingType string

const (
	SavingManual           SavingType = "MANUAL"
	SavingAutomatic        SavingType = "AUTOMATIC"
	SavingRoundUp          SavingType = "ROUND_UP"
	SavingGoalContribution SavingType = "GOAL_CONTRIBUTION"
)

// Saving is created alongside a Transaction when money is set aside (goal
// contributions), not for withdrawals or payments. Used for savings-rate
// reporting.
type Saving struct {
	ID     string
	UserID UserID
	Amount Amount
	Type   SavingType
	Date   time.Time
}

// =============================================================================
// EXPENSE - Money leaving the system directly from a goal
// =============================================================================

// Expense is the record of a goal-funded payment. PayFromGoal writes an
// Expense instead of a Transaction; the expense itself is the audit record
// for that path.
type Expense struct {
	ID          string
	UserID      UserID
	Description string
	Amount      Amount
	Category    string
	Date        time.Time
}

// ExpenseCategoryGoalPayment tags expenses created by goal-funded payments.
const ExpenseCategoryGoalPayment = "Goal Payment"

// =============================================================================
// USER - Minimal directory entry for receiver resolution
// =============================================================================

// User holds just enough identity for the engine to resolve a transfer
// receiver by id or phone. Authentication lives elsewhere entirely.
type User struct {
	ID        UserID
	Name      string
	Phone     string
	CreatedAt time.Time
}
