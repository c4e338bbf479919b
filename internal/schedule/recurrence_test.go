package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airvault/internal/types"
)

func lagos(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func at(loc *time.Location, year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func TestNextExecutionOneTime(t *testing.T) {
	loc := lagos(t)
	now := at(loc, 2026, time.September, 15, 12, 0)

	t.Run("future timestamp fires at that timestamp", func(t *testing.T) {
		target := at(loc, 2026, time.September, 20, 9, 0)
		next, ok := NextExecution(types.OneTimeRecurrence{At: target}, now, loc)
		require.True(t, ok)
		assert.True(t, target.Equal(next))
	})

	t.Run("past timestamp has no occurrence", func(t *testing.T) {
		target := at(loc, 2026, time.September, 10, 9, 0)
		_, ok := NextExecution(types.OneTimeRecurrence{At: target}, now, loc)
		assert.False(t, ok)
	})

	t.Run("timestamp equal to now counts as passed", func(t *testing.T) {
		_, ok := NextExecution(types.OneTimeRecurrence{At: now}, now, loc)
		assert.False(t, ok)
	})
}

func TestNextExecutionDaily(t *testing.T) {
	loc := lagos(t)
	rec := types.DailyRecurrence{At: types.TimeOfDay{Hour: 9, Minute: 0}}

	t.Run("before the time of day fires today", func(t *testing.T) {
		now := at(loc, 2026, time.September, 15, 8, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 15, 9, 0).Equal(next))
	})

	t.Run("after the time of day fires tomorrow", func(t *testing.T) {
		now := at(loc, 2026, time.September, 15, 10, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 16, 9, 0).Equal(next))
	})

	t.Run("exactly at the time of day fires tomorrow", func(t *testing.T) {
		now := at(loc, 2026, time.September, 15, 9, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 16, 9, 0).Equal(next))
	})

	t.Run("rolls across month boundaries", func(t *testing.T) {
		now := at(loc, 2026, time.September, 30, 23, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.October, 1, 9, 0).Equal(next))
	})
}

func TestNextExecutionWeekly(t *testing.T) {
	loc := lagos(t)
	// 2026-09-15 is a Tuesday.
	rec := types.WeeklyRecurrence{Weekday: time.Friday, At: types.TimeOfDay{Hour: 7, Minute: 30}}

	t.Run("earlier in the week fires this week", func(t *testing.T) {
		now := at(loc, 2026, time.September, 15, 12, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 18, 7, 30).Equal(next))
		assert.Equal(t, time.Friday, next.Weekday())
	})

	t.Run("same weekday before the time fires today", func(t *testing.T) {
		now := at(loc, 2026, time.September, 18, 6, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 18, 7, 30).Equal(next))
	})

	t.Run("same weekday after the time fires next week", func(t *testing.T) {
		now := at(loc, 2026, time.September, 18, 8, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 25, 7, 30).Equal(next))
	})
}

func TestNextExecutionMonthlyClamping(t *testing.T) {
	loc := lagos(t)
	rec := types.MonthlyRecurrence{Day: 31, At: types.TimeOfDay{Hour: 9, Minute: 0}}

	t.Run("clamps to the last day of a short month", func(t *testing.T) {
		// Evaluated after August 31 fired; September has 30 days.
		now := at(loc, 2026, time.August, 31, 10, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 30, 9, 0).Equal(next))
	})

	t.Run("returns to day 31 after a clamped month", func(t *testing.T) {
		now := at(loc, 2026, time.September, 30, 10, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.October, 31, 9, 0).Equal(next))
	})

	t.Run("clamps to February 28", func(t *testing.T) {
		now := at(loc, 2027, time.January, 31, 10, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2027, time.February, 28, 9, 0).Equal(next))
	})

	t.Run("leap year February clamps to 29", func(t *testing.T) {
		now := at(loc, 2028, time.January, 31, 10, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2028, time.February, 29, 9, 0).Equal(next))
	})

	t.Run("earlier in the month fires this month", func(t *testing.T) {
		rec := types.MonthlyRecurrence{Day: 15, At: types.TimeOfDay{Hour: 9, Minute: 0}}
		now := at(loc, 2026, time.September, 10, 12, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2026, time.September, 15, 9, 0).Equal(next))
	})

	t.Run("december rolls into january", func(t *testing.T) {
		now := at(loc, 2026, time.December, 31, 10, 0)
		next, ok := NextExecution(rec, now, loc)
		require.True(t, ok)
		assert.True(t, at(loc, 2027, time.January, 31, 9, 0).Equal(next))
	})
}
