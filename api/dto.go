/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ENCODING:
  Amounts cross the wire as decimal strings ("25.50"), never floats. The
  handlers parse them with shopspring/decimal and reject anything that
  doesn't parse.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/piggybank/ledger-engine/insights"
	"github.com/piggybank/ledger-engine/ledger"
)

// =============================================================================
// WALLET AND TRANSACTION TYPES
// =============================================================================

// WalletDTO represents a wallet in API responses.
type WalletDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// TransactionDTO represents one ledger transaction.
type TransactionDTO struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	SenderID    string `json:"sender_id,omitempty"`
	ReceiverID  string `json:"receiver_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// AmountRequest is the body for deposit and withdraw.
type AmountRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// TransferRequest is the body for wallet-to-wallet transfers. Receiver is a
// user id or a phone number.
type TransferRequest struct {
	Receiver    string `json:"receiver"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// QRPaymentRequest is the body for QR payments out of a goal.
type QRPaymentRequest struct {
	GoalID string `json:"goal_id"`
	Amount string `json:"amount"`
	QRData string `json:"qr_data"`
}

// TransferResponse returns both post-transfer wallets plus the record.
type TransferResponse struct {
	SenderWallet   WalletDTO      `json:"sender_wallet"`
	ReceiverWallet WalletDTO      `json:"receiver_wallet"`
	Transaction    TransactionDTO `json:"transaction"`
}

// WalletOperationResponse returns the post-operation wallet plus the record.
type WalletOperationResponse struct {
	Wallet      WalletDTO      `json:"wallet"`
	Transaction TransactionDTO `json:"transaction"`
}

// =============================================================================
// GOAL TYPES
// =============================================================================

// GoalDTO represents a savings goal in API responses.
type GoalDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Target     string `json:"target"`
	Saved      string `json:"saved"`
	Currency   string `json:"currency"`
	Priority   string `json:"priority"`
	TargetDate string `json:"target_date"`
	IsActive   bool   `json:"is_active"`
	Progress   string `json:"progress"`
	Remaining  string `json:"remaining"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// GoalProgressDTO is the compact row for the progress listing.
type GoalProgressDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Target   string `json:"target"`
	Saved    string `json:"saved"`
	Progress string `json:"progress"`
	DaysLeft int    `json:"days_left"`
}

// CreateGoalRequest is the request to create a goal.
type CreateGoalRequest struct {
	Name       string `json:"name"`
	Target     string `json:"target"`
	Priority   string `json:"priority,omitempty"`
	TargetDate string `json:"target_date"`
}

// UpdateGoalRequest carries partial goal updates. Absent fields stay
// untouched; there is deliberately no saved field.
type UpdateGoalRequest struct {
	Name       *string `json:"name,omitempty"`
	Target     *string `json:"target,omitempty"`
	Priority   *string `json:"priority,omitempty"`
	TargetDate *string `json:"target_date,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

// GoalOperationResponse returns the post-operation goal and wallet.
type GoalOperationResponse struct {
	Goal        GoalDTO         `json:"goal"`
	Wallet      WalletDTO       `json:"wallet"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
}

// ExpenseDTO represents a goal-funded payment record.
type ExpenseDTO struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

// PaymentResponse returns the post-payment goal plus the expense record.
type PaymentResponse struct {
	Goal    GoalDTO    `json:"goal"`
	Expense ExpenseDTO `json:"expense"`
}

// =============================================================================
// INSIGHT TYPES
// =============================================================================

// InsightDTO represents a persisted advisory tip.
type InsightDTO struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Impact           string `json:"impact"`
	PotentialSavings string `json:"potential_savings,omitempty"`
	IsRead           bool   `json:"is_read"`
	CreatedAt        string `json:"created_at"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toWalletDTO(w *ledger.Wallet) WalletDTO {
	return WalletDTO{
		ID:        string(w.ID),
		UserID:    string(w.UserID),
		Balance:   w.Balance.Value.String(),
		Currency:  string(w.Balance.Currency),
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		Amount:      tx.Amount.Value.String(),
		Currency:    string(tx.Amount.Currency),
		Type:        string(tx.Type),
		Status:      string(tx.Status),
		Description: tx.Description,
		SenderID:    string(tx.SenderUserID),
		ReceiverID:  string(tx.ReceiverUserID),
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}

func toGoalDTO(g *ledger.Goal) GoalDTO {
	return GoalDTO{
		ID:         string(g.ID),
		Name:       g.Name,
		Target:     g.Target.Value.String(),
		Saved:      g.Saved.Value.String(),
		Currency:   string(g.Target.Currency),
		Priority:   string(g.Priority),
		TargetDate: g.TargetDate.Format(time.RFC3339),
		IsActive:   g.IsActive,
		Progress:   g.Progress().Round(2).String(),
		Remaining:  g.Remaining().Value.String(),
		CreatedAt:  g.CreatedAt.Format(time.RFC3339),
	}
}

func toExpenseDTO(e *ledger.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount.Value.String(),
		Currency:    string(e.Amount.Currency),
		Category:    e.Category,
		Date:        e.Date.Format(time.RFC3339),
	}
}

func toInsightDTO(ins *insights.Insight) InsightDTO {
	dto := InsightDTO{
		ID:          ins.ID,
		Type:        string(ins.Type),
		Title:       ins.Title,
		Description: ins.Description,
		Impact:      string(ins.Impact),
		IsRead:      ins.IsRead,
		CreatedAt:   ins.CreatedAt.Format(time.RFC3339),
	}
	if ins.PotentialSavings != nil {
		dto.PotentialSavings = ins.PotentialSavings.String()
	}
	return dto
}
