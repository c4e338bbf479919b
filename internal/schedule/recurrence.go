// Package schedule owns the lifecycle and recurrence computation of
// scheduled top-ups: the status state machine and the next-execution math
// for one-time, daily, weekly and monthly schedules.
package schedule

import (
	"time"

	"airvault/internal/types"
)

// DefaultTimezone is used when a schedule does not carry its own zone.
const DefaultTimezone = "Africa/Lagos"

// NextExecution computes the next firing time for a recurrence descriptor
// relative to now, in the given local time zone. The boolean is false when
// no future occurrence exists (a one-time schedule whose timestamp has
// passed).
//
// An occurrence landing exactly on now counts as passed: a daily 09:00
// schedule evaluated at 09:00:00 yields tomorrow 09:00.
func NextExecution(r types.Recurrence, now time.Time, loc *time.Location) (time.Time, bool) {
	switch rec := r.(type) {
	case types.OneTimeRecurrence:
		if rec.At.After(now) {
			return rec.At, true
		}
		return time.Time{}, false

	case types.DailyRecurrence:
		local := now.In(loc)
		candidate := time.Date(local.Year(), local.Month(), local.Day(),
			rec.At.Hour, rec.At.Minute, 0, 0, loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, true

	case types.WeeklyRecurrence:
		local := now.In(loc)
		daysAhead := (int(rec.Weekday) - int(local.Weekday()) + 7) % 7
		candidate := time.Date(local.Year(), local.Month(), local.Day()+daysAhead,
			rec.At.Hour, rec.At.Minute, 0, 0, loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		return candidate, true

	case types.MonthlyRecurrence:
		local := now.In(loc)
		candidate := monthlyOccurrence(local.Year(), local.Month(), rec.Day, rec.At, loc)
		if !candidate.After(local) {
			candidate = monthlyOccurrence(local.Year(), local.Month()+1, rec.Day, rec.At, loc)
		}
		return candidate, true
	}

	return time.Time{}, false
}

// monthlyOccurrence builds the occurrence for a given month, clamping the
// target day to the month's last day when the month is too short. The
// stored day is never mutated, so a schedule on day 31 fires on Feb 28 and
// returns to Mar 31 (it does not stay clamped, and never rolls into the
// following month).
func monthlyOccurrence(year int, month time.Month, day int, at types.TimeOfDay, loc *time.Location) time.Time {
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, at.Hour, at.Minute, 0, 0, loc)
}

// daysInMonth returns the number of days in the given month. Passing a
// month > December is fine; time normalizes it into the next year.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
