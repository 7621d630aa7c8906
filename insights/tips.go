/*
tips.go - Rule-based tip generation for goal contributions

PURPOSE:
  Turns a committed contribution's resulting state into at most three tips:

  1. Progress tip - where the goal stands now (achieved / almost there /
     halfway / early days)
  2. Pace tip - how much per day is still needed to hit the target date
  3. Headroom tip - what's left in the wallet after the contribution

  The thresholds are fixed; there is no model call here, just templating
  over the numbers the ledger already computed.
*/
package insights

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/piggybank/ledger-engine/ledger"
)

// maxTipsPerEvent caps how many tips one contribution can produce.
const maxTipsPerEvent = 3

// Generator implements ledger.AdvisoryHook: it builds tips from a
// contribution event and persists them as insights.
type Generator struct {
	store Store
	now   func() time.Time
}

func NewGenerator(store Store) *Generator {
	return &Generator{store: store, now: time.Now}
}

// OnGoalContribution generates and persists tips for a committed
// contribution. Called by the ledger engine post-commit, off the request
// path; errors surface only in the engine's log.
func (g *Generator) OnGoalContribution(ctx context.Context, ev ledger.ContributionEvent) error {
	tips := g.GoalContributionTips(ev)

	for _, tip := range tips {
		ins := &Insight{
			ID:               uuid.NewString(),
			UserID:           ev.UserID,
			Type:             tip.Type,
			Title:            tip.Title,
			Description:      tip.Description,
			Impact:           tip.Impact,
			PotentialSavings: tip.PotentialSavings,
			CreatedAt:        g.now().UTC(),
		}
		if err := g.store.AppendInsight(ctx, ins); err != nil {
			return fmt.Errorf("persist insight: %w", err)
		}
	}
	return nil
}

// GoalContributionTips produces 0-3 tips from the post-contribution state.
// Exposed separately so the rules can be tested without a store.
func (g *Generator) GoalContributionTips(ev ledger.ContributionEvent) []Tip {
	var tips []Tip

	tips = append(tips, progressTip(&ev.Goal))

	if pace, ok := paceTip(&ev.Goal, g.now()); ok {
		tips = append(tips, pace)
	}

	tips = append(tips, headroomTip(&ev.Wallet, ev.Amount))

	if len(tips) > maxTipsPerEvent {
		tips = tips[:maxTipsPerEvent]
	}
	return tips
}

// =============================================================================
// RULES
// =============================================================================

func progressTip(goal *ledger.Goal) Tip {
	progress := goal.Progress()
	pct := progress.Round(0).IntPart()

	switch {
	case progress.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return Tip{
			Type:  TipAchievement,
			Title: fmt.Sprintf("Goal Achieved: %s!", goal.Name),
			Description: fmt.Sprintf(
				"Congratulations! You've reached your goal of %s %s.",
				goal.Target.Value, goal.Target.Currency),
			Impact: ImpactHigh,
		}
	case progress.GreaterThanOrEqual(decimal.NewFromInt(75)):
		return Tip{
			Type:  TipGoal,
			Title: fmt.Sprintf("Almost There: %d%% Complete", pct),
			Description: fmt.Sprintf(
				"Just %s %s more to reach your %q goal.",
				goal.Remaining().Value, goal.Target.Currency, goal.Name),
			Impact: ImpactHigh,
		}
	case progress.GreaterThanOrEqual(decimal.NewFromInt(50)):
		return Tip{
			Type:  TipGoal,
			Title: fmt.Sprintf("Halfway Point Reached: %d%%", pct),
			Description: fmt.Sprintf(
				"You're now %d%% toward your %q goal. Keep up the momentum.",
				pct, goal.Name),
			Impact: ImpactMedium,
		}
	default:
		return Tip{
			Type:  TipGoal,
			Title: fmt.Sprintf("Progress Update: %d%% Complete", pct),
			Description: fmt.Sprintf(
				"You've saved %s of your %s %s goal %q.",
				goal.Saved.Value, goal.Target.Value, goal.Target.Currency, goal.Name),
			Impact: ImpactMedium,
		}
	}
}

// paceTip estimates the per-day saving needed to hit the target date.
// Skipped when the goal is already funded or the target date has passed.
func paceTip(goal *ledger.Goal, now time.Time) (Tip, bool) {
	remaining := goal.Remaining()
	if remaining.IsZero() {
		return Tip{}, false
	}
	daysLeft := int(math.Ceil(goal.TargetDate.Sub(now).Hours() / 24))
	if daysLeft <= 0 {
		return Tip{}, false
	}

	perDay := remaining.Value.Div(decimal.NewFromInt(int64(daysLeft))).Round(2)
	date := goal.TargetDate.Format("Jan 2, 2006")

	switch {
	case perDay.LessThanOrEqual(decimal.NewFromInt(10)):
		return Tip{
			Type:  TipSaving,
			Title: "You're Ahead of Schedule",
			Description: fmt.Sprintf(
				"Save just %s/day and you'll reach %q by %s - possibly earlier.",
				perDay, goal.Name, date),
			Impact: ImpactMedium,
		}, true
	case perDay.LessThanOrEqual(decimal.NewFromInt(50)):
		return Tip{
			Type:  TipSaving,
			Title: "On Track to Success",
			Description: fmt.Sprintf(
				"Save %s/day to reach %q by %s.",
				perDay, goal.Name, date),
			Impact: ImpactMedium,
		}, true
	default:
		return Tip{
			Type:  TipWarning,
			Title: "Increase Your Pace",
			Description: fmt.Sprintf(
				"Reaching %q by %s now takes %s/day. Consider adjusting the target date or contributing more.",
				goal.Name, date, perDay),
			Impact: ImpactMedium,
		}, true
	}
}

func headroomTip(wallet *ledger.Wallet, contributed ledger.Amount) Tip {
	balance := wallet.Balance.Value
	remaining := balance // post-mutation balance already excludes the contribution

	if balance.IsZero() {
		return Tip{
			Type:  TipWarning,
			Title: "Wallet Is Empty",
			Description: fmt.Sprintf(
				"That contribution of %s used your whole wallet balance. Top up before the next one.",
				contributed.Value),
			Impact: ImpactMedium,
		}
	}
	return Tip{
		Type:  TipSaving,
		Title: "Wallet Headroom",
		Description: fmt.Sprintf(
			"After contributing %s you still have %s %s in your wallet.",
			contributed.Value, remaining, wallet.Balance.Currency),
		Impact:           ImpactLow,
		PotentialSavings: &remaining,
	}
}
