/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is or the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - rejected before any storage access
  2. Precondition errors - balance/saved guards violated at commit time
  3. Not-found errors - missing or foreign-owned records
  4. Storage errors - infrastructure failures, propagated unclassified

USAGE:
    if errors.Is(err, ledger.ErrInsufficientFunds) {
        var ife *ledger.InsufficientFundsError
        if errors.As(err, &ife) {
            // ife.Available, ife.Requested, ife.Shortfall
        }
    }

SEE ALSO:
  - engine.go: Where these are returned
  - api/handlers.go: Error-to-HTTP-status mapping
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when an operation amount is zero or
	// negative. Checked before any storage access.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientFunds is returned when a balance or saved guard fails.
	// The check happens inside the conditional update, at commit time, not
	// at an earlier read.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound is returned when a referenced wallet doesn't exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrGoalNotFound is returned when a goal doesn't exist or is not owned
	// by the caller. The two cases are indistinguishable on purpose.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrReceiverNotFound is returned when a transfer receiver cannot be
	// resolved. Reported before any mutation.
	ErrReceiverNotFound = errors.New("receiver not found")

	// ErrInvalidTransfer is returned for structurally invalid transfers:
	// self-transfer, or sender and receiver wallets in different currencies.
	ErrInvalidTransfer = errors.New("invalid transfer")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports how far short the account was.
type InsufficientFundsError struct {
	Available Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s",
		e.Available.Value, e.Requested.Value)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// Shortfall returns Requested - Available.
func (e *InsufficientFundsError) Shortfall() Amount {
	return e.Requested.Sub(e.Available)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrGoalNotFound) ||
		errors.Is(err, ErrReceiverNotFound)
}

// IsClientError returns true if the error is the caller's fault rather than
// an infrastructure failure. These map to 4xx at the HTTP layer; everything
// else maps to 5xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidTransfer) ||
		IsNotFound(err)
}
