/*
engine.go - The atomic fund-movement operations

PURPOSE:
  The Engine is the only component that moves money. Each public operation
  is one atomic unit: it loads the relevant accounts, applies conditional
  deltas, appends the audit records, and either commits everything or
  nothing.

CRITICAL INVARIANTS:
  1. Balance >= 0 and Saved >= 0 after every committed operation
  2. No partial state: a failure anywhere inside the unit rolls back all of it
  3. Amount > 0 is checked before any storage access
  4. All mutations funnel through ApplyBalanceDelta/ApplySavedDelta

FAILURE SEMANTICS:
  Business failures (invalid amount, insufficient funds, not found, invalid
  transfer) come back as typed errors - see errors.go. Storage failures
  propagate unchanged; the engine does not retry them.

THE PAYMENT ASYMMETRY:
  PayFromGoal and QRPay write an Expense record and no Transaction row.
  Every other money-moving path appends a Transaction. The expense is the
  audit record for goal-funded payments; callers that want a unified view
  must read both tables.

POST-COMMIT HOOK:
  ContributeToGoal - and only ContributeToGoal - fires the advisory hook
  after its unit commits. The hook runs in its own goroutine with its own
  context; its errors and panics are logged and discarded. See hook.go.

SEE ALSO:
  - store.go: The interfaces this engine drives
  - hook.go: Advisory tip dispatch
*/
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine performs atomic, invariant-preserving transitions between wallet
// and goal states. It is safe for concurrent use; serialization of
// same-account operations is the store's conditional-update discipline,
// not a lock in here.
type Engine struct {
	store       TxStore
	hook        AdvisoryHook
	hookTimeout time.Duration
}

// NewEngine creates an engine over the given store. hook may be nil, in
// which case contributions simply skip tip generation.
func NewEngine(store TxStore, hook AdvisoryHook) *Engine {
	return &Engine{
		store:       store,
		hook:        hook,
		hookTimeout: 10 * time.Second,
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// WalletResult is the outcome of a wallet-only operation.
type WalletResult struct {
	Wallet      *Wallet
	Transaction *Transaction
}

// TransferResult is the outcome of a wallet-to-wallet transfer.
type TransferResult struct {
	SenderWallet   *Wallet
	ReceiverWallet *Wallet
	Transaction    *Transaction
}

// GoalResult is the outcome of a goal contribution or goal withdrawal.
type GoalResult struct {
	Wallet      *Wallet
	Goal        *Goal
	Transaction *Transaction
	Saving      *Saving // set for contributions only
}

// PaymentResult is the outcome of a goal-funded payment. There is no
// Transaction here; the Expense is the record.
type PaymentResult struct {
	Goal    *Goal
	Expense *Expense
}

// =============================================================================
// WALLET OPERATIONS
// =============================================================================

// Deposit credits the user's wallet, creating it on first use. Cannot fail
// on funds; only on invalid amount or storage errors.
func (e *Engine) Deposit(ctx context.Context, userID UserID, amount decimal.Decimal, description string) (*WalletResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result WalletResult
	err := e.store.WithTx(ctx, func(s Store) error {
		wallet, err := s.GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}

		credit := Amount{Value: amount, Currency: wallet.Balance.Currency}
		updated, err := s.ApplyBalanceDelta(ctx, wallet.ID, credit)
		if err != nil {
			return err
		}

		tx := &Transaction{
			ID:               newTransactionID(),
			Amount:           credit,
			Type:             TxDeposit,
			Status:           StatusCompleted,
			Description:      description,
			ReceiverWalletID: wallet.ID,
			ReceiverUserID:   userID,
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}

		result = WalletResult{Wallet: updated, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Withdraw debits the user's wallet. The balance guard is the conditional
// update itself - there is no prior read that could race.
func (e *Engine) Withdraw(ctx context.Context, userID UserID, amount decimal.Decimal, description string) (*WalletResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result WalletResult
	err := e.store.WithTx(ctx, func(s Store) error {
		wallet, err := s.GetWallet(ctx, userID)
		if err != nil {
			return err
		}

		debit := Amount{Value: amount, Currency: wallet.Balance.Currency}
		updated, err := s.ApplyBalanceDelta(ctx, wallet.ID, debit.Neg())
		if err != nil {
			return err
		}

		tx := &Transaction{
			ID:             newTransactionID(),
			Amount:         debit,
			Type:           TxWithdrawal,
			Status:         StatusCompleted,
			Description:    description,
			SenderWalletID: wallet.ID,
			SenderUserID:   userID,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}

		result = WalletResult{Wallet: updated, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Transfer moves money between two users' wallets as one unit. The receiver
// is resolved by user id or phone; a missing receiver aborts before any
// mutation. Both wallets change inside the same transaction, deltas applied
// in wallet-id order so row locks are always taken in the same sequence.
func (e *Engine) Transfer(ctx context.Context, senderID UserID, receiver string, amount decimal.Decimal, description string) (*TransferResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result TransferResult
	err := e.store.WithTx(ctx, func(s Store) error {
		receiverUser, err := s.ResolveUser(ctx, receiver)
		if err != nil {
			return err
		}
		if receiverUser.ID == senderID {
			return fmt.Errorf("%w: cannot transfer to yourself", ErrInvalidTransfer)
		}

		senderWallet, err := s.GetWallet(ctx, senderID)
		if err != nil {
			return err
		}
		receiverWallet, err := s.GetOrCreateWallet(ctx, receiverUser.ID)
		if err != nil {
			return err
		}
		if senderWallet.Balance.Currency != receiverWallet.Balance.Currency {
			return fmt.Errorf("%w: wallets hold different currencies", ErrInvalidTransfer)
		}

		moved := Amount{Value: amount, Currency: senderWallet.Balance.Currency}

		// Fixed global ordering by wallet id. The debit is the only delta
		// that can fail; a failure rolls back whichever side went first.
		var updatedSender, updatedReceiver *Wallet
		if senderWallet.ID < receiverWallet.ID {
			if updatedSender, err = s.ApplyBalanceDelta(ctx, senderWallet.ID, moved.Neg()); err != nil {
				return err
			}
			if updatedReceiver, err = s.ApplyBalanceDelta(ctx, receiverWallet.ID, moved); err != nil {
				return err
			}
		} else {
			if updatedReceiver, err = s.ApplyBalanceDelta(ctx, receiverWallet.ID, moved); err != nil {
				return err
			}
			if updatedSender, err = s.ApplyBalanceDelta(ctx, senderWallet.ID, moved.Neg()); err != nil {
				return err
			}
		}

		tx := &Transaction{
			ID:               newTransactionID(),
			Amount:           moved,
			Type:             TxTransfer,
			Status:           StatusCompleted,
			Description:      description,
			SenderWalletID:   senderWallet.ID,
			SenderUserID:     senderID,
			ReceiverWalletID: receiverWallet.ID,
			ReceiverUserID:   receiverUser.ID,
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}

		result = TransferResult{
			SenderWallet:   updatedSender,
			ReceiverWallet: updatedReceiver,
			Transaction:    tx,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// GOAL OPERATIONS
// =============================================================================

// ContributeToGoal moves money from the wallet into a goal's saved balance.
// Appends both a WITHDRAWAL transaction and a GOAL_CONTRIBUTION saving
// record. After the unit commits, fires the advisory hook asynchronously
// with the post-mutation state.
func (e *Engine) ContributeToGoal(ctx context.Context, userID UserID, goalID GoalID, amount decimal.Decimal) (*GoalResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result GoalResult
	err := e.store.WithTx(ctx, func(s Store) error {
		goal, err := s.GetGoal(ctx, goalID, userID)
		if err != nil {
			return err
		}
		wallet, err := s.GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}

		moved := Amount{Value: amount, Currency: wallet.Balance.Currency}
		updatedWallet, err := s.ApplyBalanceDelta(ctx, wallet.ID, moved.Neg())
		if err != nil {
			return err
		}
		updatedGoal, err := s.ApplySavedDelta(ctx, goalID, Amount{Value: amount, Currency: goal.Saved.Currency})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		tx := &Transaction{
			ID:             newTransactionID(),
			Amount:         moved,
			Type:           TxWithdrawal,
			Status:         StatusCompleted,
			Description:    fmt.Sprintf("Added to %s", goal.Name),
			SenderWalletID: wallet.ID,
			SenderUserID:   userID,
			CreatedAt:      now,
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}

		saving := &Saving{
			ID:     uuid.NewString(),
			UserID: userID,
			Amount: moved,
			Type:   SavingGoalContribution,
			Date:   now,
		}
		if err := s.AppendSaving(ctx, saving); err != nil {
			return err
		}

		result = GoalResult{
			Wallet:      updatedWallet,
			Goal:        updatedGoal,
			Transaction: tx,
			Saving:      saving,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.dispatchContributionHook(ContributionEvent{
		UserID: userID,
		GoalID: goalID,
		Amount: Amount{Value: amount, Currency: result.Wallet.Balance.Currency},
		Goal:   *result.Goal,
		Wallet: *result.Wallet,
	})

	return &result, nil
}

// WithdrawFromGoal moves money from a goal's saved balance back into the
// wallet.
func (e *Engine) WithdrawFromGoal(ctx context.Context, userID UserID, goalID GoalID, amount decimal.Decimal) (*GoalResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result GoalResult
	err := e.store.WithTx(ctx, func(s Store) error {
		goal, err := s.GetGoal(ctx, goalID, userID)
		if err != nil {
			return err
		}
		wallet, err := s.GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}

		updatedGoal, err := s.ApplySavedDelta(ctx, goalID, Amount{Value: amount, Currency: goal.Saved.Currency}.Neg())
		if err != nil {
			return err
		}
		moved := Amount{Value: amount, Currency: wallet.Balance.Currency}
		updatedWallet, err := s.ApplyBalanceDelta(ctx, wallet.ID, moved)
		if err != nil {
			return err
		}

		tx := &Transaction{
			ID:               newTransactionID(),
			Amount:           moved,
			Type:             TxDeposit,
			Status:           StatusCompleted,
			Description:      fmt.Sprintf("Withdrawn from %s", goal.Name),
			ReceiverWalletID: wallet.ID,
			ReceiverUserID:   userID,
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}

		result = GoalResult{
			Wallet:      updatedWallet,
			Goal:        updatedGoal,
			Transaction: tx,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PayFromGoal pays an external party straight out of a goal, without the
// money passing through the wallet. Writes an Expense, not a Transaction.
func (e *Engine) PayFromGoal(ctx context.Context, userID UserID, goalID GoalID, amount decimal.Decimal, description string) (*PaymentResult, error) {
	return e.payFromGoal(ctx, userID, goalID, amount, description, "")
}

// QRPay is PayFromGoal with the opaque QR payload kept in the expense
// description for traceability. Not a separate state machine.
func (e *Engine) QRPay(ctx context.Context, userID UserID, goalID GoalID, amount decimal.Decimal, qrPayload string) (*PaymentResult, error) {
	return e.payFromGoal(ctx, userID, goalID, amount, "", qrPayload)
}

func (e *Engine) payFromGoal(ctx context.Context, userID UserID, goalID GoalID, amount decimal.Decimal, description, qrPayload string) (*PaymentResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var result PaymentResult
	err := e.store.WithTx(ctx, func(s Store) error {
		goal, err := s.GetGoal(ctx, goalID, userID)
		if err != nil {
			return err
		}

		paid := Amount{Value: amount, Currency: goal.Saved.Currency}
		updatedGoal, err := s.ApplySavedDelta(ctx, goalID, paid.Neg())
		if err != nil {
			return err
		}

		if description == "" {
			description = fmt.Sprintf("Payment for %s", goal.Name)
		}
		if qrPayload != "" {
			description = fmt.Sprintf("QR Payment from %s (%s)", goal.Name, qrPayload)
		}

		expense := &Expense{
			ID:          uuid.NewString(),
			UserID:      userID,
			Description: description,
			Amount:      paid,
			Category:    ExpenseCategoryGoalPayment,
			Date:        time.Now().UTC(),
		}
		if err := s.AppendExpense(ctx, expense); err != nil {
			return err
		}

		result = PaymentResult{Goal: updatedGoal, Expense: expense}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// READ PATHS
// =============================================================================

// Wallet returns (and lazily creates) the user's wallet.
func (e *Engine) Wallet(ctx context.Context, userID UserID) (*Wallet, error) {
	return e.store.GetOrCreateWallet(ctx, userID)
}

// Transactions returns the user's transaction history, newest first.
func (e *Engine) Transactions(ctx context.Context, userID UserID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return e.store.ListTransactions(ctx, userID, limit, offset)
}

// =============================================================================
// HELPERS
// =============================================================================

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	return nil
}

func newTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

func (e *Engine) dispatchContributionHook(ev ContributionEvent) {
	if e.hook == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("advisory hook panicked (contribution to goal %s): %v", ev.GoalID, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), e.hookTimeout)
		defer cancel()
		if err := e.hook.OnGoalContribution(ctx, ev); err != nil {
			log.Printf("advisory hook failed (contribution to goal %s): %v", ev.GoalID, err)
		}
	}()
}
