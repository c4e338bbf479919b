package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airvault/internal/core"
	"airvault/internal/types"
)

// BudgetService is the monthly budget tracker contract used by this handler.
// Mirrors the concrete budget.Tracker methods.
type BudgetService interface {
	SetBudget(ctx context.Context, userID string, amount int64) (*types.Budget, error)
	GetStatus(ctx context.Context, userID string) (*types.BudgetStatus, error)
	GetStatusForMonth(ctx context.Context, userID, monthYear string) (*types.BudgetStatus, error)
}

// SetBudgetRequest is the request body for PUT /v1/budget.
type SetBudgetRequest struct {
	Amount int64 `json:"amount" validate:"required"`
}

// budgetStatusQuery validates the optional ?month= query on GET /v1/budget.
type budgetStatusQuery struct {
	Month string `json:"month" validate:"omitempty,month_key"`
}

// BudgetHandler manages the current month's spending budget.
type BudgetHandler struct {
	budget    BudgetService
	validator *core.Validator
	logger    *slog.Logger
}

// NewBudgetHandler creates a BudgetHandler.
func NewBudgetHandler(b BudgetService, v *core.Validator, l *slog.Logger) *BudgetHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BudgetHandler{budget: b, validator: v, logger: l}
}

// RegisterRoutes mounts budget routes on the provided router.
func (h *BudgetHandler) RegisterRoutes(r chi.Router) {
	r.Route("/budget", func(r chi.Router) {
		r.Put("/", h.Set)
		r.Get("/", h.Status)
	})
}

// Set handles PUT /v1/budget, creating or replacing the current month's
// budget amount. Accumulated spend for the month is preserved.
func (h *BudgetHandler) Set(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req SetBudgetRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	b, err := h.budget.SetBudget(r.Context(), userID, req.Amount)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "monthly budget set",
		"user_id", userID,
		"month_year", b.MonthYear,
		"budget_amount", b.BudgetAmount,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: b})
}

// Status handles GET /v1/budget, returning the derived view for the current
// month, or 404 when no budget has been set that month. An optional
// ?month=2006-01 query selects a past month instead.
func (h *BudgetHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	q := budgetStatusQuery{Month: r.URL.Query().Get("month")}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	var (
		status *types.BudgetStatus
		err    error
	)
	if q.Month != "" {
		status, err = h.budget.GetStatusForMonth(r.Context(), userID, q.Month)
	} else {
		status, err = h.budget.GetStatus(r.Context(), userID)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: status})
}
