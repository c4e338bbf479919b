package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"airvault/internal/locks"
	"airvault/internal/types"
)

// Store abstracts the scheduled top-up repository.
type Store interface {
	Create(ctx context.Context, s *types.ScheduledTopUp) error
	Get(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error)
	ListByUser(ctx context.Context, userID string) ([]*types.ScheduledTopUp, error)
	Update(ctx context.Context, s *types.ScheduledTopUp) error

	// ListDue returns active schedules with next_execution_at <= now,
	// oldest first, up to limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledTopUp, error)
}

// Manager owns schedule lifecycle: creation, the pause/resume/cancel state
// machine, and execution bookkeeping. Schedules are mutated only through
// the Manager. All mutations for a given schedule id are serialized
// through the shared lock registry, so a mutation cannot interleave with
// an execution in progress for the same id.
type Manager struct {
	store  Store
	locks  *locks.Registry
	clock  types.Clock
	logger *slog.Logger
}

// Config holds the dependencies for creating a Manager.
type Config struct {
	Store  Store
	Locks  *locks.Registry
	Clock  types.Clock
	Logger *slog.Logger
}

// New creates a Manager with the given configuration.
func New(cfg Config) *Manager {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := cfg.Locks
	if reg == nil {
		reg = locks.NewRegistry()
	}
	return &Manager{store: cfg.Store, locks: reg, clock: clock, logger: logger}
}

// Locks exposes the registry so the execution runner shares the same
// per-id mutual exclusion units.
func (m *Manager) Locks() *locks.Registry { return m.locks }

// CreateParams are the user-supplied fields of a new schedule.
type CreateParams struct {
	UserID        string
	Type          types.TopUpType
	Network       types.Network
	Amount        int64
	PhoneNumberID string
	Recurrence    types.Recurrence
	Timezone      string
	MaxExecutions *int
}

// Create validates and persists a new schedule, computing its first
// next_execution_at. A one-time schedule whose timestamp is already in
// the past is created directly in the completed state with no pending
// execution; it never fires.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*types.ScheduledTopUp, error) {
	if p.Recurrence == nil {
		return nil, types.NewAppError(types.ErrCodeInvalidRecurrence, "recurrence descriptor is required", nil)
	}
	if err := p.Recurrence.Validate(); err != nil {
		return nil, err
	}
	if p.Amount <= 0 {
		return nil, types.NewAppError(types.ErrCodeBelowMinimum, "amount must be positive", nil)
	}
	if p.MaxExecutions != nil && *p.MaxExecutions <= 0 {
		return nil, types.NewAppError(types.ErrCodeInvalidBody, "max_executions must be positive when set", nil)
	}

	tz := p.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidBody,
			fmt.Sprintf("unknown time zone %q", tz), err)
	}

	now := m.clock.Now()
	s := &types.ScheduledTopUp{
		ID:            uuid.New().String(),
		UserID:        p.UserID,
		Type:          p.Type,
		Network:       p.Network,
		Amount:        p.Amount,
		PhoneNumberID: p.PhoneNumberID,
		ScheduleType:  p.Recurrence.ScheduleType(),
		Recurrence:    types.RecurrenceSpec{Recurrence: p.Recurrence},
		Timezone:      tz,
		Status:        types.ScheduleActive,
		MaxExecutions: p.MaxExecutions,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if next, ok := NextExecution(p.Recurrence, now, loc); ok {
		s.NextExecutionAt = &next
	} else {
		s.Status = types.ScheduleCompleted
	}

	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "schedule created",
		"schedule_id", s.ID,
		"user_id", s.UserID,
		"schedule_type", string(s.ScheduleType),
		"status", string(s.Status),
	)
	return s, nil
}

// Get returns a schedule owned by the user.
func (m *Manager) Get(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error) {
	return m.store.Get(ctx, id, userID)
}

// List returns all schedules owned by the user.
func (m *Manager) List(ctx context.Context, userID string) ([]*types.ScheduledTopUp, error) {
	return m.store.ListByUser(ctx, userID)
}

// ListDue returns active schedules due at or before now.
func (m *Manager) ListDue(ctx context.Context, now time.Time, limit int) ([]*types.ScheduledTopUp, error) {
	return m.store.ListDue(ctx, now, limit)
}

// Pause moves an active schedule to paused. next_execution_at and
// total_executions are preserved; the execution loop skips paused
// schedules.
func (m *Manager) Pause(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error) {
	return m.transition(ctx, id, userID, func(s *types.ScheduledTopUp) error {
		if s.Status != types.ScheduleActive {
			return transitionError(s.Status, SchedulePauseAction)
		}
		s.Status = types.SchedulePaused
		return nil
	})
}

// Resume moves a paused schedule back to active. If the preserved
// next_execution_at has already passed, it is recomputed relative to the
// resume time; otherwise it is kept.
func (m *Manager) Resume(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error) {
	return m.transition(ctx, id, userID, func(s *types.ScheduledTopUp) error {
		if s.Status != types.SchedulePaused {
			return transitionError(s.Status, ScheduleResumeAction)
		}
		s.Status = types.ScheduleActive

		now := m.clock.Now()
		if s.NextExecutionAt == nil || !s.NextExecutionAt.After(now) {
			loc, err := time.LoadLocation(s.Timezone)
			if err != nil {
				loc = time.UTC
			}
			if next, ok := NextExecution(s.Recurrence.Recurrence, now, loc); ok {
				s.NextExecutionAt = &next
			} else {
				// A one-time schedule resumed after its moment has passed
				// has nothing left to fire.
				s.Status = types.ScheduleCompleted
				s.NextExecutionAt = nil
			}
		}
		return nil
	})
}

// Cancel terminally cancels an active or paused schedule.
func (m *Manager) Cancel(ctx context.Context, id, userID string) (*types.ScheduledTopUp, error) {
	return m.transition(ctx, id, userID, func(s *types.ScheduledTopUp) error {
		if s.Status.Terminal() {
			return transitionError(s.Status, ScheduleCancelAction)
		}
		s.Status = types.ScheduleCancelled
		s.NextExecutionAt = nil
		return nil
	})
}

// MarkExecuted records a successful execution: total_executions is
// incremented, and the schedule either completes (one-time fired, or
// max_executions reached) or gets a fresh next_execution_at computed from
// now. The caller (the execution runner) already holds the schedule's
// lock, so MarkExecuted does not reacquire it.
func (m *Manager) MarkExecuted(ctx context.Context, s *types.ScheduledTopUp) error {
	s.TotalExecutions++
	s.UpdatedAt = m.clock.Now()

	done := s.ScheduleType == types.ScheduleOneTime ||
		(s.MaxExecutions != nil && s.TotalExecutions >= *s.MaxExecutions)
	if done {
		s.Status = types.ScheduleCompleted
		s.NextExecutionAt = nil
	} else {
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			loc = time.UTC
		}
		now := m.clock.Now()
		if next, ok := NextExecution(s.Recurrence.Recurrence, now, loc); ok {
			s.NextExecutionAt = &next
		} else {
			s.Status = types.ScheduleCompleted
			s.NextExecutionAt = nil
		}
	}

	return m.store.Update(ctx, s)
}

// RecordFailure records a failed execution attempt. The schedule stays
// active and rolls forward to its next occurrence so a persistent failure
// does not retry on every runner pass; total_executions is not
// incremented. A failed one-time schedule has no further occurrence and
// completes. Like MarkExecuted, the caller already holds the schedule's
// lock.
func (m *Manager) RecordFailure(ctx context.Context, s *types.ScheduledTopUp) error {
	s.UpdatedAt = m.clock.Now()

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	if next, ok := NextExecution(s.Recurrence.Recurrence, m.clock.Now(), loc); ok {
		s.NextExecutionAt = &next
	} else {
		s.Status = types.ScheduleCompleted
		s.NextExecutionAt = nil
	}

	return m.store.Update(ctx, s)
}

// transition loads the schedule under its id lock, applies the mutation,
// and persists the result.
func (m *Manager) transition(ctx context.Context, id, userID string, mutate func(*types.ScheduledTopUp) error) (*types.ScheduledTopUp, error) {
	if err := m.locks.Acquire(ctx, id); err != nil {
		return nil, err
	}
	defer m.locks.Release(id)

	s, err := m.store.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = m.clock.Now()
	if err := m.store.Update(ctx, s); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "schedule transitioned",
		"schedule_id", s.ID,
		"status", string(s.Status),
	)
	return s, nil
}

// Action names used in invalid-transition error messages.
const (
	SchedulePauseAction  = "pause"
	ScheduleResumeAction = "resume"
	ScheduleCancelAction = "cancel"
)

func transitionError(from types.ScheduleStatus, action string) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeInvalidStateTransition,
		fmt.Sprintf("cannot %s a %s schedule", action, from), nil,
		map[string]any{"status": string(from), "action": action})
}
