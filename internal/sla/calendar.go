// Package sla computes working-time based SLA state for grievance issues.
//
// All functions in this package are pure: they read an immutable
// [WorkingCalendar] and [Policy] and never touch storage or the wall clock,
// so they are safe to call from any number of goroutines.
package sla

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCalendarConfig is returned when a calendar cannot produce correct
// working-time figures. It is fatal at startup.
var ErrInvalidCalendarConfig = errors.New("invalid calendar config")

const dateLayout = "2006-01-02"

// CalendarConfig describes the business week of the deployment.
type CalendarConfig struct {
	Location     *time.Location
	DayStartHour int
	DayEndHour   int
	WorkingDays  []time.Weekday
	// Holidays are plain dates in YYYY-MM-DD form, interpreted in Location.
	Holidays []string
}

// WorkingCalendar defines the business week, daily working window and
// holiday set. It is immutable once constructed.
type WorkingCalendar struct {
	loc          *time.Location
	dayStartHour int
	dayEndHour   int
	weekdays     [7]bool
	holidays     map[string]struct{}
}

// NewWorkingCalendar validates cfg and builds a calendar.
func NewWorkingCalendar(cfg CalendarConfig) (*WorkingCalendar, error) {
	if cfg.DayStartHour < 0 || cfg.DayEndHour > 24 {
		return nil, fmt.Errorf("%w: working hours %d-%d out of range", ErrInvalidCalendarConfig, cfg.DayStartHour, cfg.DayEndHour)
	}
	if cfg.DayStartHour >= cfg.DayEndHour {
		return nil, fmt.Errorf("%w: day start %d must be before day end %d", ErrInvalidCalendarConfig, cfg.DayStartHour, cfg.DayEndHour)
	}
	if len(cfg.WorkingDays) == 0 {
		return nil, fmt.Errorf("%w: no working weekdays", ErrInvalidCalendarConfig)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	cal := &WorkingCalendar{
		loc:          loc,
		dayStartHour: cfg.DayStartHour,
		dayEndHour:   cfg.DayEndHour,
		holidays:     make(map[string]struct{}, len(cfg.Holidays)),
	}
	for _, day := range cfg.WorkingDays {
		if day < time.Sunday || day > time.Saturday {
			return nil, fmt.Errorf("%w: unknown weekday %d", ErrInvalidCalendarConfig, day)
		}
		cal.weekdays[day] = true
	}
	for _, raw := range cfg.Holidays {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: holiday %q: %v", ErrInvalidCalendarConfig, raw, err)
		}
		cal.holidays[date.Format(dateLayout)] = struct{}{}
	}
	return cal, nil
}

// WithHolidays returns a copy of the calendar with extra holiday dates.
func (c *WorkingCalendar) WithHolidays(dates ...string) (*WorkingCalendar, error) {
	cfg := CalendarConfig{
		Location:     c.loc,
		DayStartHour: c.dayStartHour,
		DayEndHour:   c.dayEndHour,
		Holidays:     append(c.Holidays(), dates...),
	}
	for day, ok := range c.weekdays {
		if ok {
			cfg.WorkingDays = append(cfg.WorkingDays, time.Weekday(day))
		}
	}
	return NewWorkingCalendar(cfg)
}

// Location returns the timezone all calendar dates are interpreted in.
func (c *WorkingCalendar) Location() *time.Location {
	return c.loc
}

// DayLength returns the length of a full working window.
func (c *WorkingCalendar) DayLength() time.Duration {
	return time.Duration(c.dayEndHour-c.dayStartHour) * time.Hour
}

// Holidays returns the configured holiday dates.
func (c *WorkingCalendar) Holidays() []string {
	out := make([]string, 0, len(c.holidays))
	for date := range c.holidays {
		out = append(out, date)
	}
	return out
}

// IsHoliday reports whether t falls on a configured holiday.
func (c *WorkingCalendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[t.In(c.loc).Format(dateLayout)]
	return ok
}

// IsWorkingDay reports whether the calendar date of t is a working weekday
// and not a holiday.
func (c *WorkingCalendar) IsWorkingDay(t time.Time) bool {
	local := t.In(c.loc)
	return c.weekdays[local.Weekday()] && !c.IsHoliday(local)
}

// window returns the working window of the calendar date of day.
func (c *WorkingCalendar) window(day time.Time) (time.Time, time.Time) {
	y, m, d := day.In(c.loc).Date()
	return time.Date(y, m, d, c.dayStartHour, 0, 0, 0, c.loc),
		time.Date(y, m, d, c.dayEndHour, 0, 0, 0, c.loc)
}

// ParseWeekdays parses a comma separated list such as "mon,tue,wed". Full
// day names are accepted too; anything else is rejected.
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	names := make(map[string]time.Weekday, 14)
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		names[full] = d
		names[full[:3]] = d
	}
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		day, ok := names[part]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidCalendarConfig, part)
		}
		days = append(days, day)
	}
	return days, nil
}
