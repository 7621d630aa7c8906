/*
Package insights generates and persists advisory tips.

PURPOSE:
  After a goal contribution commits, the ledger engine hands this package
  the post-mutation state and it produces 0-3 short, human-readable
  suggestions (progress, pace toward the target date, wallet headroom),
  persisting them as insight records for later display.

  Nothing here participates in the ledger's atomic unit. A failure in this
  package is logged by the engine and discarded; it never invalidates a
  committed operation.

SEE ALSO:
  - tips.go: The generation rules
  - ledger/hook.go: The interface this package implements
*/
package insights

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/piggybank/ledger-engine/ledger"
)

// =============================================================================
// TIP AND INSIGHT RECORDS
// =============================================================================

type TipType string

const (
	TipSaving      TipType = "SAVING"
	TipSpending    TipType = "SPENDING"
	TipWarning     TipType = "WARNING"
	TipGoal        TipType = "GOAL"
	TipAchievement TipType = "ACHIEVEMENT"
)

type Impact string

const (
	ImpactLow    Impact = "LOW"
	ImpactMedium Impact = "MEDIUM"
	ImpactHigh   Impact = "HIGH"
)

// Tip is one advisory message before persistence.
type Tip struct {
	Type             TipType
	Title            string
	Description      string
	Impact           Impact
	PotentialSavings *decimal.Decimal
}

// Insight is a persisted tip.
type Insight struct {
	ID               string
	UserID           ledger.UserID
	Type             TipType
	Title            string
	Description      string
	Impact           Impact
	PotentialSavings *decimal.Decimal
	IsRead           bool
	CreatedAt        time.Time
}

// Store persists insight records. Separate from the ledger's stores: these
// writes happen outside any ledger transaction.
type Store interface {
	AppendInsight(ctx context.Context, ins *Insight) error
	ListInsights(ctx context.Context, userID ledger.UserID, limit int) ([]Insight, error)
}
