package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airvault/internal/types"
)

type mockStore struct {
	schedules map[string]*types.ScheduledTopUp
}

func newMockStore() *mockStore {
	return &mockStore{schedules: make(map[string]*types.ScheduledTopUp)}
}

func (m *mockStore) Create(_ context.Context, s *types.ScheduledTopUp) error {
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *mockStore) Get(_ context.Context, id, userID string) (*types.ScheduledTopUp, error) {
	s, ok := m.schedules[id]
	if !ok || s.UserID != userID {
		return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	cp := *s
	return &cp, nil
}

func (m *mockStore) ListByUser(_ context.Context, userID string) ([]*types.ScheduledTopUp, error) {
	var out []*types.ScheduledTopUp
	for _, s := range m.schedules {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) Update(_ context.Context, s *types.ScheduledTopUp) error {
	if _, ok := m.schedules[s.ID]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *mockStore) ListDue(_ context.Context, now time.Time, limit int) ([]*types.ScheduledTopUp, error) {
	var out []*types.ScheduledTopUp
	for _, s := range m.schedules {
		if s.Status == types.ScheduleActive && s.NextExecutionAt != nil && !s.NextExecutionAt.After(now) {
			cp := *s
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T) (*Manager, *mockStore, *fixedClock) {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	clock := &fixedClock{now: time.Date(2026, time.September, 15, 8, 0, 0, 0, loc)}
	store := newMockStore()
	return New(Config{Store: store, Clock: clock}), store, clock
}

func dailyParams(userID string) CreateParams {
	return CreateParams{
		UserID:        userID,
		Type:          types.TopUpAirtime,
		Network:       types.NetworkMTN,
		Amount:        1_000,
		PhoneNumberID: "phone-1",
		Recurrence:    types.DailyRecurrence{At: types.TimeOfDay{Hour: 9, Minute: 0}},
	}
}

func TestCreateComputesFirstExecution(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	s, err := m.Create(ctx, dailyParams("user-1"))
	require.NoError(t, err)

	assert.Equal(t, types.ScheduleActive, s.Status)
	assert.Equal(t, types.ScheduleDaily, s.ScheduleType)
	assert.Equal(t, DefaultTimezone, s.Timezone)
	require.NotNil(t, s.NextExecutionAt)
	assert.True(t, s.NextExecutionAt.After(clock.now))
	assert.Equal(t, 9, s.NextExecutionAt.Hour())
	assert.Equal(t, 15, s.NextExecutionAt.Day(), "08:00 creation fires same day at 09:00")
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	t.Run("missing recurrence", func(t *testing.T) {
		p := dailyParams("user-1")
		p.Recurrence = nil
		_, err := m.Create(ctx, p)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeInvalidRecurrence, appErr.Code)
	})

	t.Run("invalid time of day", func(t *testing.T) {
		p := dailyParams("user-1")
		p.Recurrence = types.DailyRecurrence{At: types.TimeOfDay{Hour: 24, Minute: 0}}
		_, err := m.Create(ctx, p)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeInvalidRecurrence, appErr.Code)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		p := dailyParams("user-1")
		p.Amount = 0
		_, err := m.Create(ctx, p)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeBelowMinimum, appErr.Code)
	})

	t.Run("unknown time zone", func(t *testing.T) {
		p := dailyParams("user-1")
		p.Timezone = "Mars/Olympus"
		_, err := m.Create(ctx, p)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeInvalidBody, appErr.Code)
	})
}

func TestCreatePastOneTimeCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	p := dailyParams("user-1")
	p.Recurrence = types.OneTimeRecurrence{At: clock.now.Add(-time.Hour)}
	s, err := m.Create(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, types.ScheduleCompleted, s.Status)
	assert.Nil(t, s.NextExecutionAt)
	assert.Zero(t, s.TotalExecutions)
}

func TestPauseResumeLifecycle(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	s, err := m.Create(ctx, dailyParams("user-1"))
	require.NoError(t, err)
	origNext := *s.NextExecutionAt

	paused, err := m.Pause(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.SchedulePaused, paused.Status)
	require.NotNil(t, paused.NextExecutionAt)
	assert.True(t, origNext.Equal(*paused.NextExecutionAt), "pause preserves next_execution_at")

	t.Run("pausing a paused schedule fails", func(t *testing.T) {
		_, err := m.Pause(ctx, s.ID, "user-1")
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeInvalidStateTransition, appErr.Code)
	})

	t.Run("resume before the next occurrence keeps it", func(t *testing.T) {
		resumed, err := m.Resume(ctx, s.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, types.ScheduleActive, resumed.Status)
		require.NotNil(t, resumed.NextExecutionAt)
		assert.True(t, origNext.Equal(*resumed.NextExecutionAt))
	})

	t.Run("resume after the next occurrence recomputes it", func(t *testing.T) {
		_, err := m.Pause(ctx, s.ID, "user-1")
		require.NoError(t, err)

		clock.now = clock.now.Add(48 * time.Hour)
		resumed, err := m.Resume(ctx, s.ID, "user-1")
		require.NoError(t, err)
		require.NotNil(t, resumed.NextExecutionAt)
		assert.True(t, resumed.NextExecutionAt.After(clock.now))
		assert.False(t, origNext.Equal(*resumed.NextExecutionAt))
	})
}

func TestResumePastOneTimeCompletes(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	p := dailyParams("user-1")
	p.Recurrence = types.OneTimeRecurrence{At: clock.now.Add(time.Hour)}
	s, err := m.Create(ctx, p)
	require.NoError(t, err)

	_, err = m.Pause(ctx, s.ID, "user-1")
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Hour)
	resumed, err := m.Resume(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.ScheduleCompleted, resumed.Status)
	assert.Nil(t, resumed.NextExecutionAt)
}

func TestCancelIsTerminal(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	s, err := m.Create(ctx, dailyParams("user-1"))
	require.NoError(t, err)

	cancelled, err := m.Cancel(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.ScheduleCancelled, cancelled.Status)
	assert.Nil(t, cancelled.NextExecutionAt)

	for name, op := range map[string]func() error{
		"pause":  func() error { _, err := m.Pause(ctx, s.ID, "user-1"); return err },
		"resume": func() error { _, err := m.Resume(ctx, s.ID, "user-1"); return err },
		"cancel": func() error { _, err := m.Cancel(ctx, s.ID, "user-1"); return err },
	} {
		t.Run(name+" after cancel fails", func(t *testing.T) {
			var appErr *types.AppError
			require.ErrorAs(t, op(), &appErr)
			assert.Equal(t, types.ErrCodeInvalidStateTransition, appErr.Code)
		})
	}
}

func TestOwnershipIsEnforced(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	s, err := m.Create(ctx, dailyParams("user-1"))
	require.NoError(t, err)

	_, err = m.Pause(ctx, s.ID, "user-2")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundSchedule, appErr.Code)
}

func TestMarkExecutedRecurring(t *testing.T) {
	ctx := context.Background()
	m, store, clock := newTestManager(t)

	s, err := m.Create(ctx, dailyParams("user-1"))
	require.NoError(t, err)

	clock.now = *s.NextExecutionAt
	require.NoError(t, m.MarkExecuted(ctx, s))

	assert.Equal(t, 1, s.TotalExecutions)
	assert.Equal(t, types.ScheduleActive, s.Status)
	require.NotNil(t, s.NextExecutionAt)
	assert.True(t, s.NextExecutionAt.After(clock.now), "fresh next_execution_at after firing")

	persisted, err := store.Get(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.TotalExecutions)
}

func TestMarkExecutedOneTimeCompletes(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	p := dailyParams("user-1")
	p.Recurrence = types.OneTimeRecurrence{At: clock.now.Add(time.Hour)}
	s, err := m.Create(ctx, p)
	require.NoError(t, err)

	require.NoError(t, m.MarkExecuted(ctx, s))
	assert.Equal(t, types.ScheduleCompleted, s.Status)
	assert.Equal(t, 1, s.TotalExecutions)
	assert.Nil(t, s.NextExecutionAt)
}

func TestMarkExecutedHonorsMaxExecutions(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	maxExec := 2
	p := dailyParams("user-1")
	p.MaxExecutions = &maxExec
	s, err := m.Create(ctx, p)
	require.NoError(t, err)

	clock.now = *s.NextExecutionAt
	require.NoError(t, m.MarkExecuted(ctx, s))
	assert.Equal(t, types.ScheduleActive, s.Status)

	clock.now = *s.NextExecutionAt
	require.NoError(t, m.MarkExecuted(ctx, s))
	assert.Equal(t, types.ScheduleCompleted, s.Status)
	assert.Equal(t, 2, s.TotalExecutions)
	assert.Nil(t, s.NextExecutionAt)
}

func TestListDueFiltersStatusAndTime(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	due, err := m.Create(ctx, dailyParams("user-1"))
	require.NoError(t, err)
	paused, err := m.Create(ctx, func() CreateParams {
		p := dailyParams("user-2")
		return p
	}())
	require.NoError(t, err)
	_, err = m.Pause(ctx, paused.ID, "user-2")
	require.NoError(t, err)

	got, err := m.ListDue(ctx, due.NextExecutionAt.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)

	got, err = m.ListDue(ctx, clock.now, 10)
	require.NoError(t, err)
	assert.Empty(t, got, "nothing due before the first occurrence")
}
