// Package timeparse normalizes the date and clock strings that language
// models return for course schedules.
//
// Parsing is a priority list, not format detection: the first layout that
// matches wins, so an ambiguous string resolves to the earliest listed layout.
package timeparse

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/coursesched/internal/logger"
)

// Canonical layouts used when values are stored or compared.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

// timeLayouts are tried in order after the input is upper-cased.
var timeLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"15:04",
	ClockLayout,
}

// dateLayouts are tried in order. The abbreviated-month forms come last so
// they never shadow the primary three.
var dateLayouts = []string{
	DateLayout,
	"02Jan2006",
	"2Jan2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// NewClock builds a Clock; values are not range-checked.
func NewClock(hour, minute int) Clock {
	return Clock{Hour: hour, Minute: minute}
}

// String returns the canonical HH:MM:SS form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Kitchen returns the 12-hour form, e.g. "06:00 PM".
func (c Clock) Kitchen() string {
	return c.asTime().Format("03:04 PM")
}

// Before reports whether c is strictly earlier than o.
func (c Clock) Before(o Clock) bool {
	return c.seconds() < o.seconds()
}

func (c Clock) seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

func (c Clock) asTime() time.Time {
	return time.Date(0, 1, 1, c.Hour, c.Minute, c.Second, 0, time.UTC)
}

// ParseTime parses a clock time such as "6:00 PM", "6:00pm", "6:00 p.m.",
// "18:00" or "18:00:00". It returns ok=false for empty or unparseable input.
func ParseTime(s string) (Clock, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		logger.Debug("empty time string")
		return Clock{}, false
	}

	norm := strings.ToLower(s)
	norm = strings.ReplaceAll(norm, "a.m.", "am")
	norm = strings.ReplaceAll(norm, "p.m.", "pm")
	norm = strings.ToUpper(norm)

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, true
		}
	}

	logger.Warn("could not parse time string", "value", s)
	return Clock{}, false
}

// MustParseTime is ParseTime for literals known to be valid.
func MustParseTime(s string) Clock {
	c, ok := ParseTime(s)
	if !ok {
		panic("timeparse: invalid clock literal " + s)
	}
	return c
}

// ParseDate parses a calendar date such as "2024-01-20", "20Jan2024" or
// "January 20, 2024". The result is midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		logger.Debug("empty date string")
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	logger.Warn("could not parse date string", "value", s)
	return time.Time{}, false
}

// NormalizeDate returns the canonical YYYY-MM-DD form of s, or s trimmed
// when it cannot be parsed.
func NormalizeDate(s string) string {
	if d, ok := ParseDate(s); ok {
		return d.Format(DateLayout)
	}
	return strings.TrimSpace(s)
}

// NormalizeTime returns the canonical HH:MM:SS form of s, or s trimmed when
// it cannot be parsed.
func NormalizeTime(s string) string {
	if c, ok := ParseTime(s); ok {
		return c.String()
	}
	return strings.TrimSpace(s)
}
