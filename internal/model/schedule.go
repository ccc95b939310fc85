package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AvailabilityTemplate is a weekly schedule, business-wide when StaffID is nil.
type AvailabilityTemplate struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	BusinessID uuid.UUID  `db:"business_id" json:"business_id"`
	StaffID    *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	Name       string     `db:"name" json:"name"`
	IsDefault  bool       `db:"is_default" json:"is_default"`
}

// AvailabilitySlotRule is a recurring working window on one weekday.
// DayOfWeek follows time.Weekday (0 = Sunday).
type AvailabilitySlotRule struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TemplateID uuid.UUID `db:"template_id" json:"template_id"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
}

// AvailabilityOverride replaces the weekly rule for a single date.
type AvailabilityOverride struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	BusinessID  uuid.UUID  `db:"business_id" json:"business_id"`
	StaffID     *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	Date        time.Time  `db:"override_date" json:"date"`
	IsAvailable bool       `db:"is_available" json:"is_available"`
	StartTime   *string    `db:"start_time" json:"start_time,omitempty"`
	EndTime     *string    `db:"end_time" json:"end_time,omitempty"`
	Reason      *string    `db:"reason" json:"reason,omitempty"`
}

// HasCustomHours reports whether the override supplies its own window.
func (o *AvailabilityOverride) HasCustomHours() bool {
	return o.IsAvailable && o.StartTime != nil && o.EndTime != nil
}

// WorkingWindow is a concrete [Start, End) interval on a date.
type WorkingWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ClockTime is a wall-clock "HH:MM" value.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime accepts "HH:MM" or "HH:MM:SS". "24:00" is end of day and
// lands on the next day's midnight.
func ParseClockTime(s string) (ClockTime, error) {
	if s == "24:00" || s == "24:00:00" {
		return ClockTime{Hour: 24}, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		// TIME columns may come back with seconds
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
		}
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On places the clock time on the civil date of day in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// NewWorkingWindow builds a window on day from two "HH:MM" strings.
func NewWorkingWindow(day time.Time, start, end string) (WorkingWindow, error) {
	s, err := ParseClockTime(start)
	if err != nil {
		return WorkingWindow{}, err
	}
	e, err := ParseClockTime(end)
	if err != nil {
		return WorkingWindow{}, err
	}
	w := WorkingWindow{Start: s.On(day), End: e.On(day)}
	if !w.End.After(w.Start) {
		return WorkingWindow{}, fmt.Errorf("window %s-%s ends before it starts", start, end)
	}
	return w, nil
}
