/*
hook.go - Post-commit advisory hook

PURPOSE:
  After a goal contribution commits, the engine hands the post-mutation
  state to an AdvisoryHook so a tip generator can produce suggestions
  ("you're 30% of the way there"). The hook is a pure side channel:

  - It runs AFTER the atomic unit commits, never inside it
  - It runs asynchronously, on its own context with its own timeout
  - Its errors and panics are logged and swallowed
  - No correctness invariant depends on it; the ledger never retries or
    rolls back a committed operation because a hook failed

SEE ALSO:
  - engine.go: dispatchContributionHook
  - insights package: the production implementation
*/
package ledger

import "context"

// ContributionEvent is the post-mutation snapshot handed to the hook after
// a successful goal contribution.
type ContributionEvent struct {
	UserID UserID
	GoalID GoalID
	Amount Amount

	// State after the contribution committed.
	Goal   Goal
	Wallet Wallet
}

// AdvisoryHook consumes committed contribution events on a best-effort
// basis. Implementations persist their own records (insights) outside the
// ledger's transaction; an error return is logged by the engine and
// otherwise ignored.
type AdvisoryHook interface {
	OnGoalContribution(ctx context.Context, ev ContributionEvent) error
}

// AdvisoryHookFunc adapts a function to the AdvisoryHook interface.
type AdvisoryHookFunc func(ctx context.Context, ev ContributionEvent) error

func (f AdvisoryHookFunc) OnGoalContribution(ctx context.Context, ev ContributionEvent) error {
	return f(ctx, ev)
}
