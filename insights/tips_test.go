package insights_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piggybank/ledger-engine/insights"
	"github.com/piggybank/ledger-engine/ledger"
	"github.com/piggybank/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func amount(s string) ledger.Amount {
	return ledger.Amount{Value: ledger.ParseDecimalOrZero(s), Currency: ledger.DefaultCurrency}
}

// contributionEvent builds a post-commit event with the given saved/target
// state and wallet balance.
func contributionEvent(saved, target, walletBalance, contributed string, targetDate time.Time) ledger.ContributionEvent {
	return ledger.ContributionEvent{
		UserID: "user-1",
		GoalID: "goal-1",
		Amount: amount(contributed),
		Goal: ledger.Goal{
			ID:         "goal-1",
			UserID:     "user-1",
			Name:       "Car",
			Target:     amount(target),
			Saved:      amount(saved),
			TargetDate: targetDate,
			IsActive:   true,
		},
		Wallet: ledger.Wallet{
			ID:      "wallet-1",
			UserID:  "user-1",
			Balance: amount(walletBalance),
		},
	}
}

func inDays(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, n)
}

func tipTitles(tips []insights.Tip) []string {
	titles := make([]string, len(tips))
	for i, tip := range tips {
		titles[i] = tip.Title
	}
	return titles
}

// =============================================================================
// PROGRESS THRESHOLDS
// =============================================================================

func TestGoalContributionTips_GoalAchieved(t *testing.T) {
	// GIVEN: Saved equals target (100%)
	// WHEN: Generating tips
	// THEN: First tip is an ACHIEVEMENT with high impact

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("500", "500", "50", "100", inDays(30)))

	require.NotEmpty(t, tips)
	assert.Equal(t, insights.TipAchievement, tips[0].Type)
	assert.Equal(t, insights.ImpactHigh, tips[0].Impact)
	assert.Contains(t, tips[0].Title, "Goal Achieved")
}

func TestGoalContributionTips_OverFunded_StillAchievement(t *testing.T) {
	// GIVEN: Saved exceeds target (>100%)
	// WHEN: Generating tips
	// THEN: Still an achievement; no pace tip for a funded goal

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("600", "500", "50", "100", inDays(30)))

	require.NotEmpty(t, tips)
	assert.Equal(t, insights.TipAchievement, tips[0].Type)
	for _, tip := range tips[1:] {
		assert.NotContains(t, tip.Title, "Schedule", "funded goals get no pace tip: %v", tipTitles(tips))
	}
}

func TestGoalContributionTips_AlmostThere(t *testing.T) {
	// GIVEN: 80% progress
	// WHEN: Generating tips
	// THEN: "Almost There" goal tip with high impact

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("400", "500", "50", "100", inDays(30)))

	require.NotEmpty(t, tips)
	assert.Equal(t, insights.TipGoal, tips[0].Type)
	assert.Equal(t, insights.ImpactHigh, tips[0].Impact)
	assert.Contains(t, tips[0].Title, "Almost There")
}

func TestGoalContributionTips_Halfway(t *testing.T) {
	// GIVEN: Exactly 50% progress
	// WHEN: Generating tips
	// THEN: Halfway tip with medium impact

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("250", "500", "50", "100", inDays(30)))

	require.NotEmpty(t, tips)
	assert.Contains(t, tips[0].Title, "Halfway")
	assert.Equal(t, insights.ImpactMedium, tips[0].Impact)
}

func TestGoalContributionTips_EarlyProgress(t *testing.T) {
	// GIVEN: 30% progress
	// WHEN: Generating tips
	// THEN: Plain progress update

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("150", "500", "50", "150", inDays(30)))

	require.NotEmpty(t, tips)
	assert.Contains(t, tips[0].Title, "Progress Update")
	assert.Contains(t, tips[0].Title, "30%")
}

// =============================================================================
// PACE BANDS
// =============================================================================

func paceOf(t *testing.T, tips []insights.Tip) insights.Tip {
	t.Helper()
	for _, tip := range tips {
		switch tip.Title {
		case "You're Ahead of Schedule", "On Track to Success", "Increase Your Pace":
			return tip
		}
	}
	t.Fatalf("no pace tip among %v", tipTitles(tips))
	return insights.Tip{}
}

func TestGoalContributionTips_Pace_AheadOfSchedule(t *testing.T) {
	// GIVEN: 100 remaining over ~30 days (about 3.33/day, <=10)
	// WHEN: Generating tips
	// THEN: "Ahead of Schedule" saving tip

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("400", "500", "50", "100", inDays(30)))

	pace := paceOf(t, tips)
	assert.Equal(t, "You're Ahead of Schedule", pace.Title)
	assert.Equal(t, insights.TipSaving, pace.Type)
}

func TestGoalContributionTips_Pace_OnTrack(t *testing.T) {
	// GIVEN: 600 remaining over ~30 days (about 20/day, <=50)
	// WHEN: Generating tips
	// THEN: "On Track" saving tip

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("400", "1000", "50", "100", inDays(30)))

	pace := paceOf(t, tips)
	assert.Equal(t, "On Track to Success", pace.Title)
	assert.Equal(t, insights.TipSaving, pace.Type)
}

func TestGoalContributionTips_Pace_TooSteep_Warning(t *testing.T) {
	// GIVEN: 3000 remaining over ~30 days (about 100/day, >50)
	// WHEN: Generating tips
	// THEN: Warning to increase pace or move the date

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("1000", "4000", "50", "100", inDays(30)))

	pace := paceOf(t, tips)
	assert.Equal(t, "Increase Your Pace", pace.Title)
	assert.Equal(t, insights.TipWarning, pace.Type)
}

func TestGoalContributionTips_Pace_PastTargetDate_Skipped(t *testing.T) {
	// GIVEN: Target date already passed with money still remaining
	// WHEN: Generating tips
	// THEN: No pace tip at all

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("100", "500", "50", "100", inDays(-5)))

	for _, tip := range tips {
		assert.NotContains(t, []string{
			"You're Ahead of Schedule", "On Track to Success", "Increase Your Pace",
		}, tip.Title)
	}
}

// =============================================================================
// WALLET HEADROOM
// =============================================================================

func TestGoalContributionTips_EmptyWallet_Warning(t *testing.T) {
	// GIVEN: The contribution drained the wallet to zero
	// WHEN: Generating tips
	// THEN: A warning that the wallet is empty

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("150", "500", "0", "150", inDays(30)))

	var found bool
	for _, tip := range tips {
		if tip.Title == "Wallet Is Empty" {
			found = true
			assert.Equal(t, insights.TipWarning, tip.Type)
		}
	}
	assert.True(t, found, "expected empty-wallet warning among %v", tipTitles(tips))
}

func TestGoalContributionTips_Headroom_CarriesPotentialSavings(t *testing.T) {
	// GIVEN: 50 left in the wallet after contributing
	// WHEN: Generating tips
	// THEN: Headroom tip with PotentialSavings = 50

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("150", "500", "50", "150", inDays(30)))

	var found bool
	for _, tip := range tips {
		if tip.Title == "Wallet Headroom" {
			found = true
			require.NotNil(t, tip.PotentialSavings)
			assert.True(t, tip.PotentialSavings.Equal(ledger.ParseDecimalOrZero("50")))
		}
	}
	assert.True(t, found, "expected headroom tip among %v", tipTitles(tips))
}

// =============================================================================
// CAP AND PERSISTENCE
// =============================================================================

func TestGoalContributionTips_AtMostThree(t *testing.T) {
	// GIVEN: A state that qualifies for every rule
	// WHEN: Generating tips
	// THEN: Never more than three

	g := insights.NewGenerator(store.NewMemory())
	tips := g.GoalContributionTips(contributionEvent("150", "500", "50", "150", inDays(30)))

	assert.LessOrEqual(t, len(tips), 3)
}

func TestOnGoalContribution_PersistsInsights(t *testing.T) {
	// GIVEN: A generator over the memory store
	// WHEN: Handling a contribution event
	// THEN: Each tip lands as an insight for the user, unread

	mem := store.NewMemory()
	g := insights.NewGenerator(mem)
	ctx := context.Background()

	ev := contributionEvent("150", "500", "50", "150", inDays(30))
	require.NoError(t, g.OnGoalContribution(ctx, ev))

	list, err := mem.ListInsights(ctx, "user-1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.LessOrEqual(t, len(list), 3)
	for _, ins := range list {
		assert.Equal(t, ledger.UserID("user-1"), ins.UserID)
		assert.False(t, ins.IsRead)
		assert.NotEmpty(t, ins.ID)
		assert.NotEmpty(t, ins.Title)
	}
}
