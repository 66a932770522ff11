package sla

import (
	"math"
	"time"
)

// ElapsedWorkingHours returns the working hours between start and end,
// rounded to two decimals. It is never negative: an end at or before start
// yields zero.
func (c *WorkingCalendar) ElapsedWorkingHours(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	start, end = start.In(c.loc), end.In(c.loc)

	var total time.Duration
	lastDay := startOfDay(end)
	for day := startOfDay(start); !day.After(lastDay); day = nextDay(day) {
		if !c.IsWorkingDay(day) {
			continue
		}
		open, closed := c.window(day)
		lo := latest(open, start)
		hi := earliest(closed, end)
		if hi.After(lo) {
			total += hi.Sub(lo)
		}
	}
	return roundHours(total.Hours())
}

// AddWorkingHours returns the instant at which hours of working time have
// elapsed since start.
func (c *WorkingCalendar) AddWorkingHours(start time.Time, hours float64) time.Time {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return start
	}
	remaining := time.Duration(math.Round(hours * float64(time.Hour)))
	pointer := start.In(c.loc)

	for {
		if c.IsWorkingDay(pointer) {
			open, closed := c.window(pointer)
			from := latest(open, pointer)
			if from.Before(closed) {
				available := closed.Sub(from)
				if remaining <= available {
					return from.Add(remaining)
				}
				remaining -= available
			}
		}
		pointer = nextDay(startOfDay(pointer))
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
