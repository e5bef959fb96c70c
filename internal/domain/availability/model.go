package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrWindowNotFound = errors.New("availability window not found")

// Clock is a time of day at minute precision, stored as minutes since
// midnight. It reads and writes Postgres TIME columns and "HH:MM" JSON.
type Clock int

const (
	minutesPerDay      = 24 * 60
	microsecondsPerMin = int64(time.Minute / time.Microsecond)
)

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// EndOfDay is "24:00", the end bound of a window that runs to midnight.
const EndOfDay = Clock(minutesPerDay)

// ParseClock parses "HH:MM" (24h). "24:00" is accepted as EndOfDay.
func ParseClock(s string) (Clock, error) {
	if s == "24:00" {
		return EndOfDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) Before(o Clock) bool { return c < o }
func (c Clock) After(o Clock) bool  { return c > o }

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Clock) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into Clock")
	}
	if v.Microseconds%microsecondsPerMin != 0 {
		return fmt.Errorf("time of day %s is not a whole minute", time.Duration(v.Microseconds)*time.Microsecond)
	}
	m := v.Microseconds / microsecondsPerMin
	if m < 0 || m > minutesPerDay {
		return fmt.Errorf("time of day %d minutes out of range", m)
	}
	*c = Clock(m)
	return nil
}

func (c Clock) TimeValue() (pgtype.Time, error) {
	if c < 0 || c > EndOfDay {
		return pgtype.Time{}, fmt.Errorf("time of day %d out of range", int(c))
	}
	return pgtype.Time{Microseconds: int64(c) * microsecondsPerMin, Valid: true}, nil
}

const dateLayout = "2006-01-02"

// Window is a doctor-published block of time on a single date. Windows are
// created by the schedule publishing flow and are read-only here.
type Window struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      time.Time `json:"date"`
	StartTime Clock     `json:"start_time"`
	EndTime   Clock     `json:"end_time"`
}

// Contains reports whether [start, end] lies within the window bounds.
func (w *Window) Contains(start, end Clock) bool {
	return !start.Before(w.StartTime) && !end.After(w.EndTime)
}

func (w Window) MarshalJSON() ([]byte, error) {
	type alias Window
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(w), Date: w.Date.Format(dateLayout)})
}
