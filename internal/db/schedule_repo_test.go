package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"airvault/internal/types"
)

func scanScheduleRow(id, userID string, status types.ScheduleStatus, next *time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		now := time.Now().UTC()
		*dest[0].(*string) = id
		*dest[1].(*string) = userID
		*dest[2].(*types.TopUpType) = types.TopUpAirtime
		*dest[3].(*types.Network) = types.NetworkMTN
		*dest[4].(*int64) = 1_000
		*dest[5].(*string) = "phone-1"
		*dest[6].(*types.ScheduleType) = types.ScheduleDaily
		*dest[7].(*[]byte) = []byte(`{"type":"daily","time_of_day":"09:00"}`)
		*dest[8].(*string) = "Africa/Lagos"
		*dest[9].(*types.ScheduleStatus) = status
		*dest[10].(**time.Time) = next
		*dest[11].(*int) = 3
		*dest[12].(**int) = nil
		*dest[13].(*time.Time) = now
		*dest[14].(*time.Time) = now
		return nil
	}
}

func TestScheduleRepository_Get_DecodesRecurrence(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewScheduleRepository(dbx)

	next := time.Date(2026, time.September, 16, 8, 0, 0, 0, time.UTC)
	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: scanScheduleRow("sched-1", "user-1", types.ScheduleActive, &next)})

	s, err := repo.Get(context.Background(), "sched-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, types.ScheduleDaily, s.ScheduleType)
	daily, ok := s.Recurrence.Recurrence.(types.DailyRecurrence)
	require.True(t, ok, "recurrence envelope decodes to the concrete variant")
	assert.Equal(t, 9, daily.At.Hour)
	assert.Equal(t, 3, s.TotalExecutions)
	require.NotNil(t, s.NextExecutionAt)
	assert.True(t, next.Equal(*s.NextExecutionAt))
}

func TestScheduleRepository_Create_EncodesRecurrence(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewScheduleRepository(dbx)

	var captured []any
	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]any)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	s := &types.ScheduledTopUp{
		ID: "sched-1", UserID: "user-1", Type: types.TopUpData,
		Network: types.NetworkGlo, Amount: 2_000, PhoneNumberID: "phone-1",
		ScheduleType: types.ScheduleMonthly,
		Recurrence: types.RecurrenceSpec{Recurrence: types.MonthlyRecurrence{
			Day: 31, At: types.TimeOfDay{Hour: 9, Minute: 0},
		}},
		Timezone: "Africa/Lagos", Status: types.ScheduleActive,
	}
	require.NoError(t, repo.Create(context.Background(), s))

	require.Len(t, captured, 13)
	assert.JSONEq(t, `{"type":"monthly","day_of_month":31,"time_of_day":"09:00"}`,
		string(captured[7].([]byte)))
}

func TestScheduleRepository_ListDue_FiltersActive(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewScheduleRepository(dbx)

	next := time.Date(2026, time.September, 15, 9, 0, 0, 0, time.UTC)
	rows := newMockRows(scanScheduleRow("sched-1", "user-1", types.ScheduleActive, &next))

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			assert.Contains(t, sql, "status = 'active'")
			assert.Contains(t, sql, "next_execution_at <= $1")
		}).
		Return(rows, nil)

	due, err := repo.ListDue(context.Background(), next.Add(time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "sched-1", due[0].ID)
}

func TestScheduleRepository_Update_NotFound(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewScheduleRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Update(context.Background(), &types.ScheduledTopUp{
		ID: "missing", UserID: "user-1",
		Recurrence: types.RecurrenceSpec{Recurrence: types.DailyRecurrence{At: types.TimeOfDay{Hour: 9}}},
	})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundSchedule, appErr.Code)
}
