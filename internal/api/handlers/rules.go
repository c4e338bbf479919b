package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airvault/internal/core"
	"airvault/internal/types"
)

// RuleService is the auto top-up rule engine contract used by this handler.
// Mirrors the concrete rules.Engine methods.
type RuleService interface {
	CreateRule(ctx context.Context, userID string, typ types.TopUpType, thresholdPct int, amount int64, phoneNumberID *string) (*types.AutoTopUpRule, error)
	List(ctx context.Context, userID string) ([]*types.AutoTopUpRule, error)
	Toggle(ctx context.Context, id, userID string) (*types.AutoTopUpRule, error)
	Delete(ctx context.Context, id, userID string) error
}

// CreateRuleRequest is the request body for POST /v1/rules.
type CreateRuleRequest struct {
	Type                string  `json:"type" validate:"required,oneof=airtime data"`
	ThresholdPercentage int     `json:"threshold_percentage" validate:"required"`
	TopUpAmount         int64   `json:"topup_amount" validate:"required"`
	PhoneNumberID       *string `json:"phone_number_id,omitempty"`
}

// RuleHandler manages auto top-up rules.
type RuleHandler struct {
	rules     RuleService
	validator *core.Validator
	logger    *slog.Logger
}

// NewRuleHandler creates a RuleHandler.
func NewRuleHandler(rules RuleService, v *core.Validator, l *slog.Logger) *RuleHandler {
	if l == nil {
		l = slog.Default()
	}
	return &RuleHandler{rules: rules, validator: v, logger: l}
}

// RegisterRoutes mounts rule routes on the provided router.
func (h *RuleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Post("/toggle", h.Toggle)
			r.Delete("/", h.Delete)
		})
	})
}

// Create handles POST /v1/rules. Threshold and amount bounds are enforced by
// the rule engine; a nil phone_number_id binds the rule to the primary
// number's slot.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req CreateRuleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rule, err := h.rules.CreateRule(r.Context(), userID,
		types.TopUpType(req.Type), req.ThresholdPercentage, req.TopUpAmount, req.PhoneNumberID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "auto top-up rule created",
		"user_id", userID,
		"rule_id", rule.ID,
		"type", string(rule.Type),
		"threshold_percentage", rule.ThresholdPercentage,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: rule})
}

// List handles GET /v1/rules, newest first.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	userRules, err := h.rules.List(r.Context(), types.GetUserID(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: userRules})
}

// Toggle handles POST /v1/rules/{id}/toggle, flipping the enabled flag.
func (h *RuleHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Toggle(r.Context(), chi.URLParam(r, "id"), types.GetUserID(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rule})
}

// Delete handles DELETE /v1/rules/{id}.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), chi.URLParam(r, "id"), types.GetUserID(r.Context())); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
