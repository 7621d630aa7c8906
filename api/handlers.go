/*
handlers.go - HTTP API handlers for the wallet and goal ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Payments:
    GET    /api/payments/wallet        Caller's wallet (lazily created)
    GET    /api/payments/transactions  Transaction history
    POST   /api/payments/deposit       Credit the wallet
    POST   /api/payments/withdraw      Debit the wallet
    POST   /api/payments/transfer      Wallet-to-wallet transfer
    POST   /api/payments/qr-payment    Pay from a goal via QR payload

  Goals:
    GET    /api/goals                  List caller's goals
    POST   /api/goals                  Create goal
    GET    /api/goals/progress         Progress summary
    GET    /api/goals/{id}             Get goal
    PUT    /api/goals/{id}             Update goal (never touches saved)
    DELETE /api/goals/{id}             Delete goal
    POST   /api/goals/{id}/add         Contribute wallet money to the goal
    POST   /api/goals/{id}/withdraw    Move saved money back to the wallet
    POST   /api/goals/{id}/payment     Pay an external party from the goal

  Insights:
    GET    /api/insights               Advisory tips, newest first

CALLER IDENTITY:
  Handlers read the caller's user id from the X-User-ID header. There is no
  authentication; identity is trusted the way any header is. A missing
  header is a 400.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid transfer
  - 404: Wallet/goal/receiver not found
  - 409: Insufficient funds (the guard failed at commit time)
  - 500: Storage errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/errors.go: The error taxonomy this maps from
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/piggybank/ledger-engine/insights"
	"github.com/piggybank/ledger-engine/ledger"
)

// userIDHeader carries the caller's identity. Set by the gateway upstream;
// trusted as-is here.
const userIDHeader = "X-User-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *ledger.Engine
	Goals    ledger.GoalStore
	Insights insights.Store
}

// NewHandler creates a new handler over the engine and the two read/CRUD
// surfaces that live outside it.
func NewHandler(engine *ledger.Engine, goals ledger.GoalStore, ins insights.Store) *Handler {
	return &Handler{Engine: engine, Goals: goals, Insights: ins}
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// GetWallet returns the caller's wallet, creating an empty one on first use.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	wallet, err := h.Engine.Wallet(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, "Failed to get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(wallet))
}

// GetTransactions returns the caller's transaction history, newest first.
// Supports ?limit= and ?offset=.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.Engine.Transactions(r.Context(), userID, limit, offset)
	if err != nil {
		writeLedgerError(w, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Deposit credits the caller's wallet.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.Deposit(r.Context(), userID, amount, req.Description)
	if err != nil {
		writeLedgerError(w, "Deposit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, WalletOperationResponse{
		Wallet:      toWalletDTO(result.Wallet),
		Transaction: toTransactionDTO(result.Transaction),
	})
}

// Withdraw debits the caller's wallet.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.Withdraw(r.Context(), userID, amount, req.Description)
	if err != nil {
		writeLedgerError(w, "Withdrawal failed", err)
		return
	}
	writeJSON(w, http.StatusOK, WalletOperationResponse{
		Wallet:      toWalletDTO(result.Wallet),
		Transaction: toTransactionDTO(result.Transaction),
	})
}

// Transfer moves money from the caller's wallet to another user's wallet.
// The receiver is a user id or a phone number.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Receiver == "" {
		writeError(w, http.StatusBadRequest, "Receiver is required", nil)
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.Transfer(r.Context(), userID, req.Receiver, amount, req.Description)
	if err != nil {
		writeLedgerError(w, "Transfer failed", err)
		return
	}
	writeJSON(w, http.StatusOK, TransferResponse{
		SenderWallet:   toWalletDTO(result.SenderWallet),
		ReceiverWallet: toWalletDTO(result.ReceiverWallet),
		Transaction:    toTransactionDTO(result.Transaction),
	})
}

// QRPayment pays from a goal using an opaque QR payload. The payload ends
// up in the expense description for traceability.
func (h *Handler) QRPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req QRPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.GoalID == "" {
		writeError(w, http.StatusBadRequest, "goal_id is required", nil)
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.QRPay(r.Context(), userID, ledger.GoalID(req.GoalID), amount, req.QRData)
	if err != nil {
		writeLedgerError(w, "QR payment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{
		Goal:    toGoalDTO(result.Goal),
		Expense: toExpenseDTO(result.Expense),
	})
}

// =============================================================================
// GOAL HANDLERS
// =============================================================================

// ListGoals returns the caller's goals. ?active=true filters to active ones.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	goals, err := h.Goals.ListGoals(r.Context(), userID, activeOnly)
	if err != nil {
		writeLedgerError(w, "Failed to list goals", err)
		return
	}

	dtos := make([]GoalDTO, len(goals))
	for i := range goals {
		dtos[i] = toGoalDTO(&goals[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGoal creates a new goal with zero saved.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	target, ok := parseAmount(w, req.Target)
	if !ok {
		return
	}
	targetDate, err := time.Parse(time.RFC3339, req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date, want RFC3339", err)
		return
	}

	priority := ledger.PriorityMedium
	if req.Priority != "" {
		priority = ledger.GoalPriority(req.Priority)
	}

	goal := &ledger.Goal{
		UserID:     userID,
		Name:       req.Name,
		Target:     ledger.Amount{Value: target, Currency: ledger.DefaultCurrency},
		Saved:      ledger.NewAmountFromInt(0, ledger.DefaultCurrency),
		Priority:   priority,
		TargetDate: targetDate,
		IsActive:   true,
	}
	if err := h.Goals.CreateGoal(r.Context(), goal); err != nil {
		writeLedgerError(w, "Failed to create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(goal))
}

// GetGoal returns one of the caller's goals.
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	goalID := ledger.GoalID(chi.URLParam(r, "id"))

	goal, err := h.Goals.GetGoal(r.Context(), goalID, userID)
	if err != nil {
		writeLedgerError(w, "Failed to get goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(goal))
}

// UpdateGoal applies a partial update. The saved balance is not updatable
// through this path.
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	goalID := ledger.GoalID(chi.URLParam(r, "id"))

	var req UpdateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var upd ledger.GoalUpdate
	upd.Name = req.Name
	if req.Target != nil {
		target, ok := parseAmount(w, *req.Target)
		if !ok {
			return
		}
		upd.Target = &ledger.Amount{Value: target, Currency: ledger.DefaultCurrency}
	}
	if req.Priority != nil {
		p := ledger.GoalPriority(*req.Priority)
		upd.Priority = &p
	}
	if req.TargetDate != nil {
		td, err := time.Parse(time.RFC3339, *req.TargetDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target_date, want RFC3339", err)
			return
		}
		upd.TargetDate = &td
	}
	upd.IsActive = req.IsActive

	goal, err := h.Goals.UpdateGoal(r.Context(), goalID, userID, upd)
	if err != nil {
		writeLedgerError(w, "Failed to update goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(goal))
}

// DeleteGoal removes one of the caller's goals.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	goalID := ledger.GoalID(chi.URLParam(r, "id"))

	if err := h.Goals.DeleteGoal(r.Context(), goalID, userID); err != nil {
		writeLedgerError(w, "Failed to delete goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GoalProgress returns a compact progress view of the caller's active goals.
func (h *Handler) GoalProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	goals, err := h.Goals.ListGoals(r.Context(), userID, true)
	if err != nil {
		writeLedgerError(w, "Failed to list goals", err)
		return
	}

	now := time.Now().UTC()
	dtos := make([]GoalProgressDTO, len(goals))
	for i := range goals {
		g := &goals[i]
		daysLeft := int(g.TargetDate.Sub(now).Hours() / 24)
		if daysLeft < 0 {
			daysLeft = 0
		}
		dtos[i] = GoalProgressDTO{
			ID:       string(g.ID),
			Name:     g.Name,
			Target:   g.Target.Value.String(),
			Saved:    g.Saved.Value.String(),
			Progress: g.Progress().Round(2).String(),
			DaysLeft: daysLeft,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ContributeToGoal moves wallet money into the goal's saved balance.
func (h *Handler) ContributeToGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	goalID := ledger.GoalID(chi.URLParam(r, "id"))

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.ContributeToGoal(r.Context(), userID, goalID, amount)
	if err != nil {
		writeLedgerError(w, "Contribution failed", err)
		return
	}
	tx := toTransactionDTO(result.Transaction)
	writeJSON(w, http.StatusOK, GoalOperationResponse{
		Goal:        toGoalDTO(result.Goal),
		Wallet:      toWalletDTO(result.Wallet),
		Transaction: &tx,
	})
}

// WithdrawFromGoal moves saved money back into the wallet.
func (h *Handler) WithdrawFromGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	goalID := ledger.GoalID(chi.URLParam(r, "id"))

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.WithdrawFromGoal(r.Context(), userID, goalID, amount)
	if err != nil {
		writeLedgerError(w, "Goal withdrawal failed", err)
		return
	}
	tx := toTransactionDTO(result.Transaction)
	writeJSON(w, http.StatusOK, GoalOperationResponse{
		Goal:        toGoalDTO(result.Goal),
		Wallet:      toWalletDTO(result.Wallet),
		Transaction: &tx,
	})
}

// PayFromGoal pays an external party straight from the goal's saved balance.
func (h *Handler) PayFromGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	goalID := ledger.GoalID(chi.URLParam(r, "id"))

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.PayFromGoal(r.Context(), userID, goalID, amount, req.Description)
	if err != nil {
		writeLedgerError(w, "Payment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{
		Goal:    toGoalDTO(result.Goal),
		Expense: toExpenseDTO(result.Expense),
	})
}

// =============================================================================
// INSIGHT HANDLERS
// =============================================================================

// ListInsights returns the caller's advisory tips, newest first.
// Supports ?limit= (default 20).
func (h *Handler) ListInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}

	list, err := h.Insights.ListInsights(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list insights", err)
		return
	}

	dtos := make([]InsightDTO, len(list))
	for i := range list {
		dtos[i] = toInsightDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// callerID extracts the caller's user id from the X-User-ID header, writing
// a 400 when absent.
func callerID(w http.ResponseWriter, r *http.Request) (ledger.UserID, bool) {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing "+userIDHeader+" header", nil)
		return "", false
	}
	return ledger.UserID(id), true
}

// parseAmount parses a decimal string, writing a 400 on failure.
func parseAmount(w http.ResponseWriter, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return decimal.Decimal{}, false
	}
	return amount, true
}

// writeLedgerError maps the ledger error taxonomy to HTTP statuses.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
