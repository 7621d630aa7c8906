// Package store provides an in-memory TxStore implementation
// (for testing/dev).
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piggybank/ledger-engine/insights"
	"github.com/piggybank/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	wallets       map[ledger.WalletID]*ledger.Wallet
	walletsByUser map[ledger.UserID]ledger.WalletID
	goals         map[ledger.GoalID]*ledger.Goal
	users         map[ledger.UserID]*ledger.User
	transactions  []ledger.Transaction
	savings       []ledger.Saving
	expenses      []ledger.Expense
	insights      []insights.Insight
}

func NewMemory() *Memory {
	return &Memory{
		wallets:       make(map[ledger.WalletID]*ledger.Wallet),
		walletsByUser: make(map[ledger.UserID]ledger.WalletID),
		goals:         make(map[ledger.GoalID]*ledger.Goal),
		users:         make(map[ledger.UserID]*ledger.User),
	}
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (m *Memory) GetOrCreateWallet(_ context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateWalletLocked(userID)
}

func (m *Memory) getOrCreateWalletLocked(userID ledger.UserID) (*ledger.Wallet, error) {
	if id, ok := m.walletsByUser[userID]; ok {
		return copyWallet(m.wallets[id]), nil
	}
	now := time.Now().UTC()
	w := &ledger.Wallet{
		ID:        ledger.WalletID(uuid.NewString()),
		UserID:    userID,
		Balance:   ledger.NewAmountFromInt(0, ledger.DefaultCurrency),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.wallets[w.ID] = w
	m.walletsByUser[userID] = w.ID
	return copyWallet(w), nil
}

func (m *Memory) GetWallet(_ context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getWalletLocked(userID)
}

func (m *Memory) getWalletLocked(userID ledger.UserID) (*ledger.Wallet, error) {
	id, ok := m.walletsByUser[userID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	return copyWallet(m.wallets[id]), nil
}

func (m *Memory) GetGoal(_ context.Context, goalID ledger.GoalID, userID ledger.UserID) (*ledger.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getGoalLocked(goalID, userID)
}

func (m *Memory) getGoalLocked(goalID ledger.GoalID, userID ledger.UserID) (*ledger.Goal, error) {
	g, ok := m.goals[goalID]
	if !ok || g.UserID != userID {
		// Foreign-owned goals read as not found; existence never leaks.
		return nil, ledger.ErrGoalNotFound
	}
	return copyGoal(g), nil
}

func (m *Memory) ApplyBalanceDelta(_ context.Context, walletID ledger.WalletID, delta ledger.Amount) (*ledger.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyBalanceDeltaLocked(walletID, delta)
}

func (m *Memory) applyBalanceDeltaLocked(walletID ledger.WalletID, delta ledger.Amount) (*ledger.Wallet, error) {
	w, ok := m.wallets[walletID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return nil, &ledger.InsufficientFundsError{
			Available: w.Balance,
			Requested: delta.Neg(),
		}
	}
	w.Balance = next
	w.UpdatedAt = time.Now().UTC()
	return copyWallet(w), nil
}

func (m *Memory) ApplySavedDelta(_ context.Context, goalID ledger.GoalID, delta ledger.Amount) (*ledger.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applySavedDeltaLocked(goalID, delta)
}

func (m *Memory) applySavedDeltaLocked(goalID ledger.GoalID, delta ledger.Amount) (*ledger.Goal, error) {
	g, ok := m.goals[goalID]
	if !ok {
		return nil, ledger.ErrGoalNotFound
	}
	next := g.Saved.Add(delta)
	if next.IsNegative() {
		return nil, &ledger.InsufficientFundsError{
			Available: g.Saved,
			Requested: delta.Neg(),
		}
	}
	g.Saved = next
	g.UpdatedAt = time.Now().UTC()
	return copyGoal(g), nil
}

func (m *Memory) ResolveUser(_ context.Context, idOrPhone string) (*ledger.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveUserLocked(idOrPhone)
}

func (m *Memory) resolveUserLocked(idOrPhone string) (*ledger.User, error) {
	if u, ok := m.users[ledger.UserID(idOrPhone)]; ok {
		c := *u
		return &c, nil
	}
	for _, u := range m.users {
		if u.Phone != "" && u.Phone == strings.TrimSpace(idOrPhone) {
			c := *u
			return &c, nil
		}
	}
	return nil, ledger.ErrReceiverNotFound
}

// SaveUser registers a user in the directory. Identity management proper
// lives outside this module; tests and dev seeding use this.
func (m *Memory) SaveUser(_ context.Context, u ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = &u
	return nil
}

// =============================================================================
// TRANSACTION LOG (append-only)
// =============================================================================

func (m *Memory) AppendTransaction(_ context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(tx)
}

func (m *Memory) appendTransactionLocked(tx *ledger.Transaction) error {
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *Memory) AppendSaving(_ context.Context, s *ledger.Saving) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendSavingLocked(s)
}

func (m *Memory) appendSavingLocked(s *ledger.Saving) error {
	m.savings = append(m.savings, *s)
	return nil
}

func (m *Memory) AppendExpense(_ context.Context, e *ledger.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendExpenseLocked(e)
}

func (m *Memory) appendExpenseLocked(e *ledger.Expense) error {
	m.expenses = append(m.expenses, *e)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, userID ledger.UserID, limit, offset int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactionsLocked(userID, limit, offset)
}

func (m *Memory) listTransactionsLocked(userID ledger.UserID, limit, offset int) ([]ledger.Transaction, error) {
	var mine []ledger.Transaction
	// Newest first: the slice is append-ordered, walk it backwards.
	for i := len(m.transactions) - 1; i >= 0; i-- {
		tx := m.transactions[i]
		if tx.SenderUserID == userID || tx.ReceiverUserID == userID {
			mine = append(mine, tx)
		}
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(mine) {
		return []ledger.Transaction{}, nil
	}
	mine = mine[offset:]
	if limit > 0 && limit < len(mine) {
		mine = mine[:limit]
	}
	return mine, nil
}

// Savings returns all saving records for a user (reporting/test helper).
func (m *Memory) Savings(userID ledger.UserID) []ledger.Saving {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Saving
	for _, s := range m.savings {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Expenses returns all expense records for a user (reporting/test helper).
func (m *Memory) Expenses(userID ledger.UserID) []ledger.Expense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Expense
	for _, e := range m.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// INSIGHT STORE
// =============================================================================

// AppendInsight stores an advisory tip. Insights are written by the hook
// after the ledger unit committed, so they are outside WithTx snapshots.
func (m *Memory) AppendInsight(_ context.Context, ins *insights.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights = append(m.insights, *ins)
	return nil
}

func (m *Memory) ListInsights(_ context.Context, userID ledger.UserID, limit int) ([]insights.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []insights.Insight{}
	for i := len(m.insights) - 1; i >= 0; i-- {
		if m.insights[i].UserID == userID {
			out = append(out, m.insights[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// =============================================================================
// GOAL CRUD
// =============================================================================

func (m *Memory) CreateGoal(_ context.Context, g *ledger.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g.ID == "" {
		g.ID = ledger.GoalID(uuid.NewString())
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	m.goals[g.ID] = copyGoal(g)
	return nil
}

func (m *Memory) ListGoals(_ context.Context, userID ledger.UserID, activeOnly bool) ([]ledger.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Goal
	for _, g := range m.goals {
		if g.UserID != userID {
			continue
		}
		if activeOnly && !g.IsActive {
			continue
		}
		out = append(out, *copyGoal(g))
	}
	return out, nil
}

func (m *Memory) UpdateGoal(_ context.Context, goalID ledger.GoalID, userID ledger.UserID, upd ledger.GoalUpdate) (*ledger.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, ledger.ErrGoalNotFound
	}
	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.Target != nil {
		g.Target = *upd.Target
	}
	if upd.Priority != nil {
		g.Priority = *upd.Priority
	}
	if upd.TargetDate != nil {
		g.TargetDate = *upd.TargetDate
	}
	if upd.IsActive != nil {
		g.IsActive = *upd.IsActive
	}
	g.UpdatedAt = time.Now().UTC()
	return copyGoal(g), nil
}

func (m *Memory) DeleteGoal(_ context.Context, goalID ledger.GoalID, userID ledger.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok || g.UserID != userID {
		return ledger.ErrGoalNotFound
	}
	delete(m.goals, goalID)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	view := &txMemoryView{parent: tm}
	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	wallets := make(map[ledger.WalletID]*ledger.Wallet, len(tm.wallets))
	for k, v := range tm.wallets {
		wallets[k] = copyWallet(v)
	}
	walletsByUser := make(map[ledger.UserID]ledger.WalletID, len(tm.walletsByUser))
	for k, v := range tm.walletsByUser {
		walletsByUser[k] = v
	}
	goals := make(map[ledger.GoalID]*ledger.Goal, len(tm.goals))
	for k, v := range tm.goals {
		goals[k] = copyGoal(v)
	}
	return memorySnapshot{
		wallets:       wallets,
		walletsByUser: walletsByUser,
		goals:         goals,
		transactions:  append([]ledger.Transaction{}, tm.transactions...),
		savings:       append([]ledger.Saving{}, tm.savings...),
		expenses:      append([]ledger.Expense{}, tm.expenses...),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.wallets = s.wallets
	tm.walletsByUser = s.walletsByUser
	tm.goals = s.goals
	tm.transactions = s.transactions
	tm.savings = s.savings
	tm.expenses = s.expenses
}

type memorySnapshot struct {
	wallets       map[ledger.WalletID]*ledger.Wallet
	walletsByUser map[ledger.UserID]ledger.WalletID
	goals         map[ledger.GoalID]*ledger.Goal
	transactions  []ledger.Transaction
	savings       []ledger.Saving
	expenses      []ledger.Expense
}

// txMemoryView writes straight through to the parent (the parent holds the
// lock for the duration of WithTx; rollback is restore-from-snapshot).
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetOrCreateWallet(_ context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	return tv.parent.getOrCreateWalletLocked(userID)
}

func (tv *txMemoryView) GetWallet(_ context.Context, userID ledger.UserID) (*ledger.Wallet, error) {
	return tv.parent.getWalletLocked(userID)
}

func (tv *txMemoryView) GetGoal(_ context.Context, goalID ledger.GoalID, userID ledger.UserID) (*ledger.Goal, error) {
	return tv.parent.getGoalLocked(goalID, userID)
}

func (tv *txMemoryView) ApplyBalanceDelta(_ context.Context, walletID ledger.WalletID, delta ledger.Amount) (*ledger.Wallet, error) {
	return tv.parent.applyBalanceDeltaLocked(walletID, delta)
}

func (tv *txMemoryView) ApplySavedDelta(_ context.Context, goalID ledger.GoalID, delta ledger.Amount) (*ledger.Goal, error) {
	return tv.parent.applySavedDeltaLocked(goalID, delta)
}

func (tv *txMemoryView) ResolveUser(_ context.Context, idOrPhone string) (*ledger.User, error) {
	return tv.parent.resolveUserLocked(idOrPhone)
}

func (tv *txMemoryView) AppendTransaction(_ context.Context, tx *ledger.Transaction) error {
	return tv.parent.appendTransactionLocked(tx)
}

func (tv *txMemoryView) AppendSaving(_ context.Context, s *ledger.Saving) error {
	return tv.parent.appendSavingLocked(s)
}

func (tv *txMemoryView) AppendExpense(_ context.Context, e *ledger.Expense) error {
	return tv.parent.appendExpenseLocked(e)
}

func (tv *txMemoryView) ListTransactions(_ context.Context, userID ledger.UserID, limit, offset int) ([]ledger.Transaction, error) {
	return tv.parent.listTransactionsLocked(userID, limit, offset)
}

// Helpers

func copyWallet(w *ledger.Wallet) *ledger.Wallet {
	c := *w
	return &c
}

func copyGoal(g *ledger.Goal) *ledger.Goal {
	c := *g
	return &c
}
