package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"airvault/internal/core"
	"airvault/internal/types"
)

// IntentExecutor runs a purchase intent through the validation, gateway,
// ledger, and budget pipeline. Mirrors executor.Runner.ExecuteIntent.
type IntentExecutor interface {
	ExecuteIntent(ctx context.Context, intent *types.PurchaseIntent) (*types.Transaction, error)
}

// TransactionLister provides transaction history access. Mirrors the
// concrete db.TransactionRepository method used by this handler.
type TransactionLister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*types.Transaction, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// CreateTopUpRequest is the request body for POST /v1/topups: an immediate
// manual purchase. A nil phone_number_id targets the primary number.
type CreateTopUpRequest struct {
	Type          string  `json:"type" validate:"required,oneof=airtime data"`
	Amount        int64   `json:"amount" validate:"required"`
	PhoneNumberID *string `json:"phone_number_id,omitempty"`
}

// TopUpHandler executes manual purchases and serves transaction history.
type TopUpHandler struct {
	executor     IntentExecutor
	transactions TransactionLister
	validator    *core.Validator
	logger       *slog.Logger
}

// NewTopUpHandler creates a TopUpHandler.
func NewTopUpHandler(e IntentExecutor, t TransactionLister, v *core.Validator, l *slog.Logger) *TopUpHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TopUpHandler{executor: e, transactions: t, validator: v, logger: l}
}

// RegisterRoutes mounts top-up and transaction routes on the provided router.
func (h *TopUpHandler) RegisterRoutes(r chi.Router) {
	r.Post("/topups", h.Create)
	r.Get("/transactions", h.History)
}

// Create handles POST /v1/topups. The full purchase pipeline applies:
// validation, gateway purchase, wallet debit, and budget accumulation. A
// gateway failure still yields a 201 with the failed transaction row so the
// client sees the attempt.
func (h *TopUpHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req CreateTopUpRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	tx, err := h.executor.ExecuteIntent(r.Context(), &types.PurchaseIntent{
		UserID:        userID,
		Type:          types.TopUpType(req.Type),
		Amount:        req.Amount,
		PhoneNumberID: req.PhoneNumberID,
		Source:        types.IntentSourceManual,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "manual top-up executed",
		"user_id", userID,
		"transaction_id", tx.ID,
		"status", string(tx.Status),
		"amount", tx.Amount,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: tx})
}

// History handles GET /v1/transactions?limit=&offset=, newest first.
func (h *TopUpHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	txs, err := h.transactions.ListByUser(r.Context(), types.GetUserID(r.Context()), limit, offset)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: txs})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
