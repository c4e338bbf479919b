package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time without a date, interpreted in the
// schedule's configured time zone.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses a "HH:MM" string into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("parsing time of day %q: %w", s, err)
	}
	if err := t.Validate(); err != nil {
		return TimeOfDay{}, err
	}
	return t, nil
}

// String formats the TimeOfDay as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Validate checks the TimeOfDay is within a valid 24-hour range.
func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return NewAppError(ErrCodeInvalidRecurrence,
			fmt.Sprintf("time of day %02d:%02d is out of range", t.Hour, t.Minute), nil)
	}
	return nil
}

// Recurrence is the closed set of recurrence descriptors for a scheduled
// top-up. Exactly one concrete variant exists per ScheduleType, so an
// invalid combination (e.g. a weekly schedule without a weekday) is
// unrepresentable.
type Recurrence interface {
	ScheduleType() ScheduleType
	Validate() error
}

// OneTimeRecurrence fires once at an absolute timestamp.
type OneTimeRecurrence struct {
	At time.Time `json:"at"`
}

func (OneTimeRecurrence) ScheduleType() ScheduleType { return ScheduleOneTime }

// Validate checks the timestamp is set. Whether the timestamp is in the
// past is a creation-time policy owned by the schedule manager, not a
// structural property.
func (r OneTimeRecurrence) Validate() error {
	if r.At.IsZero() {
		return NewAppError(ErrCodeInvalidRecurrence, "one-time schedule requires a timestamp", nil)
	}
	return nil
}

// DailyRecurrence fires every day at a stored time-of-day.
type DailyRecurrence struct {
	At TimeOfDay `json:"at"`
}

func (DailyRecurrence) ScheduleType() ScheduleType { return ScheduleDaily }

func (r DailyRecurrence) Validate() error { return r.At.Validate() }

// WeeklyRecurrence fires every week on a stored day-of-week at a stored
// time-of-day.
type WeeklyRecurrence struct {
	Weekday time.Weekday `json:"weekday"`
	At      TimeOfDay    `json:"at"`
}

func (WeeklyRecurrence) ScheduleType() ScheduleType { return ScheduleWeekly }

func (r WeeklyRecurrence) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return NewAppError(ErrCodeInvalidRecurrence, "weekday out of range", nil)
	}
	return r.At.Validate()
}

// MonthlyRecurrence fires every month on a stored day-of-month at a stored
// time-of-day. When the target day exceeds the days in a candidate month,
// the occurrence is clamped to that month's last day.
type MonthlyRecurrence struct {
	Day int       `json:"day"`
	At  TimeOfDay `json:"at"`
}

func (MonthlyRecurrence) ScheduleType() ScheduleType { return ScheduleMonthly }

func (r MonthlyRecurrence) Validate() error {
	if r.Day < 1 || r.Day > 31 {
		return NewAppError(ErrCodeInvalidRecurrence, "day of month must be between 1 and 31", nil)
	}
	return r.At.Validate()
}

// recurrenceEnvelope is the persisted/wire representation of a Recurrence.
// The type tag selects the concrete variant on decode.
type recurrenceEnvelope struct {
	Type      ScheduleType `json:"type"`
	At        *time.Time   `json:"at,omitempty"`
	TimeOfDay string       `json:"time_of_day,omitempty"`
	Weekday   *int         `json:"weekday,omitempty"`
	Day       *int         `json:"day_of_month,omitempty"`
}

// RecurrenceSpec wraps a Recurrence so it can live on domain structs as a
// JSON(B) field. It implements json.Marshaler/Unmarshaler with a type-tagged
// envelope, mirroring how the store persists the descriptor.
type RecurrenceSpec struct {
	Recurrence
}

// MarshalJSON encodes the concrete variant with its type tag.
func (s RecurrenceSpec) MarshalJSON() ([]byte, error) {
	if s.Recurrence == nil {
		return []byte("null"), nil
	}
	env := recurrenceEnvelope{Type: s.Recurrence.ScheduleType()}
	switch r := s.Recurrence.(type) {
	case OneTimeRecurrence:
		at := r.At
		env.At = &at
	case DailyRecurrence:
		env.TimeOfDay = r.At.String()
	case WeeklyRecurrence:
		wd := int(r.Weekday)
		env.Weekday = &wd
		env.TimeOfDay = r.At.String()
	case MonthlyRecurrence:
		day := r.Day
		env.Day = &day
		env.TimeOfDay = r.At.String()
	default:
		return nil, fmt.Errorf("unknown recurrence variant %T", s.Recurrence)
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a type-tagged envelope into the concrete variant.
func (s *RecurrenceSpec) UnmarshalJSON(data []byte) error {
	var env recurrenceEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding recurrence envelope: %w", err)
	}

	switch env.Type {
	case ScheduleOneTime:
		if env.At == nil {
			return NewAppError(ErrCodeInvalidRecurrence, "one-time recurrence missing timestamp", nil)
		}
		s.Recurrence = OneTimeRecurrence{At: *env.At}
	case ScheduleDaily:
		at, err := ParseTimeOfDay(env.TimeOfDay)
		if err != nil {
			return err
		}
		s.Recurrence = DailyRecurrence{At: at}
	case ScheduleWeekly:
		if env.Weekday == nil {
			return NewAppError(ErrCodeInvalidRecurrence, "weekly recurrence missing weekday", nil)
		}
		at, err := ParseTimeOfDay(env.TimeOfDay)
		if err != nil {
			return err
		}
		s.Recurrence = WeeklyRecurrence{Weekday: time.Weekday(*env.Weekday), At: at}
	case ScheduleMonthly:
		if env.Day == nil {
			return NewAppError(ErrCodeInvalidRecurrence, "monthly recurrence missing day of month", nil)
		}
		at, err := ParseTimeOfDay(env.TimeOfDay)
		if err != nil {
			return err
		}
		s.Recurrence = MonthlyRecurrence{Day: *env.Day, At: at}
	default:
		return NewAppError(ErrCodeInvalidRecurrence,
			fmt.Sprintf("unknown schedule type %q", env.Type), nil)
	}
	return nil
}
