package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airvault/internal/core"
	"airvault/internal/schedule"
	"airvault/internal/types"
)

// ScheduleService is the schedule manager contract used by this handler.
// Mirrors the concrete schedule.Manager methods.
type ScheduleService interface {
	Create(ctx context.Context, p schedule.CreateParams) (*types.ScheduledTopUp, error)
	Get(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error)
	List(ctx context.Context, userID string) ([]*types.ScheduledTopUp, error)
	Pause(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error)
	Resume(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error)
	Cancel(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error)
}

// SchedulePhoneStore resolves the recipient number a schedule is bound to.
type SchedulePhoneStore interface {
	Get(ctx context.Context, id, userID string) (*types.PhoneNumber, error)
}

// CreateScheduleRequest is the request body for POST /v1/schedules. The
// recurrence field carries the type-tagged descriptor, e.g.
// {"type":"weekly","weekday":5,"time_of_day":"07:30"}.
type CreateScheduleRequest struct {
	Type          string               `json:"type" validate:"required,oneof=airtime data"`
	Amount        int64                `json:"amount" validate:"required"`
	PhoneNumberID string               `json:"phone_number_id" validate:"required"`
	Recurrence    types.RecurrenceSpec `json:"recurrence"`
	Timezone      string               `json:"timezone,omitempty" validate:"omitempty,timezone"`
	MaxExecutions *int                 `json:"max_executions,omitempty"`
}

// ScheduleHandler manages scheduled top-ups.
type ScheduleHandler struct {
	schedules ScheduleService
	phones    SchedulePhoneStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(s ScheduleService, phones SchedulePhoneStore, v *core.Validator, l *slog.Logger) *ScheduleHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ScheduleHandler{schedules: s, phones: phones, validator: v, logger: l}
}

// RegisterRoutes mounts schedule routes on the provided router.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/pause", h.Pause)
			r.Post("/resume", h.Resume)
			r.Post("/cancel", h.Cancel)
		})
	})
}

// Create handles POST /v1/schedules. The phone number must belong to the
// user; its carrier becomes the schedule's network. Recurrence validation
// and first-execution computation happen in the schedule manager.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req CreateScheduleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	phone, err := h.phones.Get(r.Context(), req.PhoneNumberID, userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	created, err := h.schedules.Create(r.Context(), schedule.CreateParams{
		UserID:        userID,
		Type:          types.TopUpType(req.Type),
		Network:       phone.Network,
		Amount:        req.Amount,
		PhoneNumberID: phone.ID,
		Recurrence:    req.Recurrence.Recurrence,
		Timezone:      req.Timezone,
		MaxExecutions: req.MaxExecutions,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "schedule created",
		"user_id", userID,
		"schedule_id", created.ID,
		"schedule_type", string(created.ScheduleType),
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: created})
}

// List handles GET /v1/schedules.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.schedules.List(r.Context(), types.GetUserID(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: schedules})
}

// Get handles GET /v1/schedules/{id}.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.schedules.Get(r.Context(), chi.URLParam(r, "id"), types.GetUserID(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: s})
}

// Pause handles POST /v1/schedules/{id}/pause.
func (h *ScheduleHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.schedules.Pause)
}

// Resume handles POST /v1/schedules/{id}/resume.
func (h *ScheduleHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.schedules.Resume)
}

// Cancel handles POST /v1/schedules/{id}/cancel.
func (h *ScheduleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.schedules.Cancel)
}

func (h *ScheduleHandler) lifecycle(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error)) {

	s, err := op(r.Context(), chi.URLParam(r, "id"), types.GetUserID(r.Context()))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: s})
}
