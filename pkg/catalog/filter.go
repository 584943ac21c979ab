package catalog

import (
	"strings"

	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

// Filter selects courses from a loaded corpus. Zero-valued fields match
// everything.
type Filter struct {
	// Subject is a case-insensitive substring of the code or name.
	Subject string
	// Day is a case-insensitive substring of any schedule's days.
	Day string
	// After and Before bound a schedule's start time, inclusive.
	After  *timeparse.Clock
	Before *timeparse.Clock
}

// Match reports whether c satisfies every set criterion.
func (f Filter) Match(c *Course) bool {
	if f.Subject != "" {
		s := strings.ToLower(f.Subject)
		if !strings.Contains(strings.ToLower(c.Code), s) && !strings.Contains(strings.ToLower(c.Name), s) {
			return false
		}
	}
	if f.Day != "" && !anySchedule(c, f.matchDay) {
		return false
	}
	if (f.After != nil || f.Before != nil) && !anySchedule(c, f.matchTime) {
		return false
	}
	return true
}

// Apply returns the courses that match, preserving order.
func (f Filter) Apply(courses []*Course) []*Course {
	var out []*Course
	for _, c := range courses {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

func (f Filter) matchDay(s ScheduleEntry) bool {
	return strings.Contains(strings.ToLower(s.DaysOfWeek), strings.ToLower(f.Day))
}

func (f Filter) matchTime(s ScheduleEntry) bool {
	start, ok := timeparse.ParseTime(s.StartTime)
	if !ok {
		return false
	}
	if f.After != nil && start.Before(*f.After) {
		return false
	}
	if f.Before != nil && f.Before.Before(start) {
		return false
	}
	return true
}

func anySchedule(c *Course, fn func(ScheduleEntry) bool) bool {
	for _, s := range c.Schedules {
		if fn(s) {
			return true
		}
	}
	return false
}
