// Package handlers contains the HTTP handler implementations for the top-up
// engine API. Each handler depends on small, locally defined interfaces so
// tests can substitute the engines and repositories behind them.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"airvault/internal/core"
	"airvault/internal/types"
	"airvault/internal/validation"
)

// PhoneStore is the data access contract for saved phone numbers. Mirrors
// the concrete db.PhoneRepository methods used by this handler.
type PhoneStore interface {
	Create(ctx context.Context, p *types.PhoneNumber) error
	Get(ctx context.Context, id, userID string) (*types.PhoneNumber, error)
	ListByUser(ctx context.Context, userID string) ([]*types.PhoneNumber, error)
	Update(ctx context.Context, p *types.PhoneNumber) error
	Delete(ctx context.Context, id, userID string) error
}

// CreatePhoneRequest is the request body for POST /v1/phones.
type CreatePhoneRequest struct {
	Number string `json:"number" validate:"required,msisdn"`
	Label  string `json:"label,omitempty" validate:"omitempty,max=50"`
}

// UpdatePhoneRequest is the request body for PATCH /v1/phones/{id}. Only
// non-primary numbers can be updated.
type UpdatePhoneRequest struct {
	Number *string `json:"number,omitempty" validate:"omitempty,msisdn"`
	Label  *string `json:"label,omitempty" validate:"omitempty,max=50"`
}

// PhoneHandler manages the user's saved recipient numbers.
type PhoneHandler struct {
	store     PhoneStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewPhoneHandler creates a PhoneHandler.
func NewPhoneHandler(store PhoneStore, v *core.Validator, l *slog.Logger) *PhoneHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PhoneHandler{store: store, validator: v, logger: l}
}

// RegisterRoutes mounts phone number routes on the provided router.
func (h *PhoneHandler) RegisterRoutes(r chi.Router) {
	r.Route("/phones", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// Create handles POST /v1/phones. The number is normalized and its carrier
// resolved from the dialing prefix before persisting. The first number a
// user saves becomes the primary; the repository enforces the per-user cap
// atomically.
func (h *PhoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req CreatePhoneRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	// Strip grouping characters before validation so "0803 123 4567" passes
	// the msisdn shape check.
	req.Number = validation.CleanPhoneNumber(req.Number)
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	cleaned, network, appErr := validation.ValidatePhone(req.Number)
	if appErr != nil {
		core.Error(w, r, appErr)
		return
	}

	existing, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	phone := &types.PhoneNumber{
		ID:        uuid.New().String(),
		UserID:    userID,
		Number:    cleaned,
		Label:     req.Label,
		IsPrimary: len(existing) == 0,
		Network:   network,
	}

	if err := h.store.Create(r.Context(), phone); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "phone number saved",
		"user_id", userID,
		"phone_id", phone.ID,
		"network", string(phone.Network),
		"is_primary", phone.IsPrimary,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: phone})
}

// List handles GET /v1/phones, primary number first.
func (h *PhoneHandler) List(w http.ResponseWriter, r *http.Request) {
	phones, err := h.store.ListByUser(r.Context(), types.GetUserID(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: phones})
}

// Get handles GET /v1/phones/{id}.
func (h *PhoneHandler) Get(w http.ResponseWriter, r *http.Request) {
	phone, err := h.store.Get(r.Context(), chi.URLParam(r, "id"), types.GetUserID(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: phone})
}

// Update handles PATCH /v1/phones/{id}. Changing a number re-resolves the
// carrier; the repository rejects updates to the primary number.
func (h *PhoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req UpdatePhoneRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Number != nil {
		*req.Number = validation.CleanPhoneNumber(*req.Number)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	phone, err := h.store.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Number != nil {
		cleaned, network, appErr := validation.ValidatePhone(*req.Number)
		if appErr != nil {
			core.Error(w, r, appErr)
			return
		}
		phone.Number = cleaned
		phone.Network = network
	}
	if req.Label != nil {
		phone.Label = *req.Label
	}

	if err := h.store.Update(r.Context(), phone); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: phone})
}

// Delete handles DELETE /v1/phones/{id}. Rules and schedules bound to the
// number are removed with it; the primary number cannot be deleted.
func (h *PhoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.store.Delete(r.Context(), id, userID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "phone number deleted",
		"user_id", userID,
		"phone_id", id,
	)
	w.WriteHeader(http.StatusNoContent)
}
