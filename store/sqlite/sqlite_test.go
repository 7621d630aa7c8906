package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piggybank/ledger-engine/insights"
	"github.com/piggybank/ledger-engine/ledger"
	"github.com/piggybank/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) ledger.Amount {
	return ledger.Amount{Value: ledger.ParseDecimalOrZero(s), Currency: ledger.DefaultCurrency}
}

func seedGoal(t *testing.T, s *sqlite.Store, userID ledger.UserID, name, target string) ledger.GoalID {
	t.Helper()
	g := &ledger.Goal{
		UserID:     userID,
		Name:       name,
		Target:     dec(target),
		Saved:      dec("0"),
		Priority:   ledger.PriorityMedium,
		TargetDate: time.Now().UTC().AddDate(0, 6, 0),
		IsActive:   true,
	}
	require.NoError(t, s.CreateGoal(context.Background(), g))
	return g.ID
}

// =============================================================================
// WALLET LIFECYCLE
// =============================================================================

func TestSQLite_GetOrCreateWallet_Idempotent(t *testing.T) {
	// GIVEN: No wallet for the user
	// WHEN: Calling GetOrCreateWallet twice
	// THEN: Both calls return the same wallet id with zero balance

	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, first.Balance.Value.IsZero())

	second, err := s.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSQLite_GetWallet_Missing_NotFound(t *testing.T) {
	// GIVEN: An empty database
	// WHEN: Reading a wallet
	// THEN: ErrWalletNotFound

	s := newTestStore(t)

	_, err := s.GetWallet(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

// =============================================================================
// CONDITIONAL DELTAS
// =============================================================================

func TestSQLite_ApplyBalanceDelta_GuardHolds(t *testing.T) {
	// GIVEN: A wallet credited to 100
	// WHEN: Debiting 150
	// THEN: InsufficientFundsError with the available amount; balance intact

	s := newTestStore(t)
	ctx := context.Background()

	wallet, err := s.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)

	updated, err := s.ApplyBalanceDelta(ctx, wallet.ID, dec("100"))
	require.NoError(t, err)
	assert.True(t, updated.Balance.Value.Equal(ledger.ParseDecimalOrZero("100")))

	_, err = s.ApplyBalanceDelta(ctx, wallet.ID, dec("150").Neg())
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	var ife *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.True(t, ife.Available.Value.Equal(ledger.ParseDecimalOrZero("100")))

	after, err := s.GetWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, after.Balance.Value.Equal(ledger.ParseDecimalOrZero("100")))
}

func TestSQLite_ApplyBalanceDelta_MissingWallet_NotFound(t *testing.T) {
	// GIVEN: No such wallet
	// WHEN: Applying a delta
	// THEN: ErrWalletNotFound, not an insufficient-funds error

	s := newTestStore(t)

	_, err := s.ApplyBalanceDelta(context.Background(), "no-such-wallet", dec("10"))
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestSQLite_ApplyBalanceDelta_MinorUnitPrecision(t *testing.T) {
	// GIVEN: Repeated small decimal credits
	// WHEN: Summing 0.10 ten times
	// THEN: Exactly 1, no float drift

	s := newTestStore(t)
	ctx := context.Background()

	wallet, err := s.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)

	var updated *ledger.Wallet
	for i := 0; i < 10; i++ {
		updated, err = s.ApplyBalanceDelta(ctx, wallet.ID, dec("0.10"))
		require.NoError(t, err)
	}
	assert.True(t, updated.Balance.Value.Equal(ledger.ParseDecimalOrZero("1")),
		"got %s", updated.Balance.Value)
}

func TestSQLite_ApplySavedDelta_GuardHolds(t *testing.T) {
	// GIVEN: A goal with 50 saved
	// WHEN: Debiting 80
	// THEN: InsufficientFundsError; saved intact

	s := newTestStore(t)
	ctx := context.Background()
	goalID := seedGoal(t, s, "user-1", "Car", "500")

	_, err := s.ApplySavedDelta(ctx, goalID, dec("50"))
	require.NoError(t, err)

	_, err = s.ApplySavedDelta(ctx, goalID, dec("80").Neg())
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	goal, err := s.GetGoal(ctx, goalID, "user-1")
	require.NoError(t, err)
	assert.True(t, goal.Saved.Value.Equal(ledger.ParseDecimalOrZero("50")))
}

// =============================================================================
// TRANSACTIONAL UNITS
// =============================================================================

func TestSQLite_WithTx_ErrorRollsBackEverything(t *testing.T) {
	// GIVEN: A funded wallet
	// WHEN: A unit debits it and then fails
	// THEN: The debit is rolled back

	s := newTestStore(t)
	ctx := context.Background()

	wallet, err := s.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	_, err = s.ApplyBalanceDelta(ctx, wallet.ID, dec("100"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.ApplyBalanceDelta(ctx, wallet.ID, dec("60").Neg()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := s.GetWallet(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, after.Balance.Value.Equal(ledger.ParseDecimalOrZero("100")),
		"rollback must restore the balance, got %s", after.Balance.Value)
}

func TestSQLite_WithTx_CommitPersistsAllWrites(t *testing.T) {
	// GIVEN: A funded wallet and a goal
	// WHEN: A unit moves money and appends records, then returns nil
	// THEN: Every write is visible afterwards

	s := newTestStore(t)
	ctx := context.Background()

	wallet, err := s.GetOrCreateWallet(ctx, "user-1")
	require.NoError(t, err)
	_, err = s.ApplyBalanceDelta(ctx, wallet.ID, dec("200"))
	require.NoError(t, err)
	goalID := seedGoal(t, s, "user-1", "Car", "500")

	err = s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.ApplyBalanceDelta(ctx, wallet.ID, dec("150").Neg()); err != nil {
			return err
		}
		if _, err := tx.ApplySavedDelta(ctx, goalID, dec("150")); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, &ledger.Transaction{
			ID:             "tx-1",
			Amount:         dec("150"),
			Type:           ledger.TxWithdrawal,
			Status:         ledger.StatusCompleted,
			Description:    "Added to Car",
			SenderWalletID: wallet.ID,
			SenderUserID:   "user-1",
			CreatedAt:      time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	after, _ := s.GetWallet(ctx, "user-1")
	assert.True(t, after.Balance.Value.Equal(ledger.ParseDecimalOrZero("50")))

	goal, _ := s.GetGoal(ctx, goalID, "user-1")
	assert.True(t, goal.Saved.Value.Equal(ledger.ParseDecimalOrZero("150")))

	txs, err := s.ListTransactions(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Added to Car", txs[0].Description)
}

// =============================================================================
// USERS AND OWNERSHIP
// =============================================================================

func TestSQLite_ResolveUser_ByIDAndPhone(t *testing.T) {
	// GIVEN: A saved user with a phone number
	// WHEN: Resolving by id and by phone
	// THEN: Both find the same user; unknown keys are ErrReceiverNotFound

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, ledger.User{ID: "bob", Name: "Bob", Phone: "+15550100"}))

	byID, err := s.ResolveUser(ctx, "bob")
	require.NoError(t, err)
	byPhone, err := s.ResolveUser(ctx, "+15550100")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byPhone.ID)

	_, err = s.ResolveUser(ctx, "nobody")
	assert.ErrorIs(t, err, ledger.ErrReceiverNotFound)
}

func TestSQLite_GetGoal_ForeignOwner_NotFound(t *testing.T) {
	// GIVEN: A goal owned by user-1
	// WHEN: user-2 reads it
	// THEN: ErrGoalNotFound

	s := newTestStore(t)
	goalID := seedGoal(t, s, "user-1", "Secret", "500")

	_, err := s.GetGoal(context.Background(), goalID, "user-2")
	assert.ErrorIs(t, err, ledger.ErrGoalNotFound)
}

// =============================================================================
// GOAL CRUD
// =============================================================================

func TestSQLite_GoalCRUD(t *testing.T) {
	// GIVEN: A created goal
	// WHEN: Updating writable fields and deleting
	// THEN: CRUD works and never touches saved

	s := newTestStore(t)
	ctx := context.Background()
	goalID := seedGoal(t, s, "user-1", "Car", "500")
	_, err := s.ApplySavedDelta(ctx, goalID, dec("75"))
	require.NoError(t, err)

	name := "New Car"
	priority := ledger.PriorityHigh
	updated, err := s.UpdateGoal(ctx, goalID, "user-1", ledger.GoalUpdate{
		Name:     &name,
		Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Car", updated.Name)
	assert.Equal(t, ledger.PriorityHigh, updated.Priority)
	assert.True(t, updated.Saved.Value.Equal(ledger.ParseDecimalOrZero("75")),
		"CRUD update must not change saved")

	goals, err := s.ListGoals(ctx, "user-1", true)
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	require.NoError(t, s.DeleteGoal(ctx, goalID, "user-1"))
	err = s.DeleteGoal(ctx, goalID, "user-1")
	assert.ErrorIs(t, err, ledger.ErrGoalNotFound)
}

func TestSQLite_ListGoals_PriorityThenDate(t *testing.T) {
	// GIVEN: Goals with mixed priorities
	// WHEN: Listing
	// THEN: HIGH before MEDIUM before LOW

	s := newTestStore(t)
	ctx := context.Background()

	for _, g := range []struct {
		name     string
		priority ledger.GoalPriority
	}{
		{"low", ledger.PriorityLow},
		{"high", ledger.PriorityHigh},
		{"medium", ledger.PriorityMedium},
	} {
		require.NoError(t, s.CreateGoal(ctx, &ledger.Goal{
			UserID:     "user-1",
			Name:       g.name,
			Target:     dec("100"),
			Saved:      dec("0"),
			Priority:   g.priority,
			TargetDate: time.Now().UTC().AddDate(0, 1, 0),
			IsActive:   true,
		}))
	}

	goals, err := s.ListGoals(ctx, "user-1", false)
	require.NoError(t, err)
	require.Len(t, goals, 3)
	assert.Equal(t, "high", goals[0].Name)
	assert.Equal(t, "medium", goals[1].Name)
	assert.Equal(t, "low", goals[2].Name)
}

// =============================================================================
// APPEND-ONLY LOGS AND INSIGHTS
// =============================================================================

func TestSQLite_ListTransactions_NewestFirst(t *testing.T) {
	// GIVEN: Three appended transactions with increasing timestamps
	// WHEN: Listing
	// THEN: Newest first with limit/offset honored

	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []ledger.TransactionID{"tx-1", "tx-2", "tx-3"} {
		require.NoError(t, s.AppendTransaction(ctx, &ledger.Transaction{
			ID:             id,
			Amount:         dec("10"),
			Type:           ledger.TxDeposit,
			Status:         ledger.StatusCompleted,
			ReceiverUserID: "user-1",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	txs, err := s.ListTransactions(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.TransactionID("tx-3"), txs[0].ID)
	assert.Equal(t, ledger.TransactionID("tx-2"), txs[1].ID)

	rest, err := s.ListTransactions(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ledger.TransactionID("tx-1"), rest[0].ID)
}

func TestSQLite_Insights_RoundTrip(t *testing.T) {
	// GIVEN: Two appended insights
	// WHEN: Listing
	// THEN: Newest first, potential savings preserved

	s := newTestStore(t)
	ctx := context.Background()

	savings := ledger.ParseDecimalOrZero("42.50")
	base := time.Now().UTC()
	require.NoError(t, s.AppendInsight(ctx, &insights.Insight{
		ID: "ins-1", UserID: "user-1", Type: insights.TipGoal,
		Title: "Progress Update: 30% Complete", Description: "Keep going",
		Impact: insights.ImpactMedium, CreatedAt: base,
	}))
	require.NoError(t, s.AppendInsight(ctx, &insights.Insight{
		ID: "ins-2", UserID: "user-1", Type: insights.TipSaving,
		Title: "Wallet Headroom", Description: "Room to save",
		Impact: insights.ImpactLow, PotentialSavings: &savings,
		CreatedAt: base.Add(time.Minute),
	}))

	list, err := s.ListInsights(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ins-2", list[0].ID)
	require.NotNil(t, list[0].PotentialSavings)
	assert.True(t, list[0].PotentialSavings.Equal(savings))
	assert.Nil(t, list[1].PotentialSavings)
}
