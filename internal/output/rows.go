package output

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jmylchreest/coursesched/internal/store"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

// ScheduleRow is one course meeting pattern, the unit of tabular and
// calendar output.
type ScheduleRow struct {
	CourseCode   string
	CourseName   string
	DeliveryType string
	Link         string
	Days         string
	StartDate    time.Time
	EndDate      time.Time
	// StartTime and EndTime are zero when unknown.
	StartTime timeparse.Clock
	EndTime   timeparse.Clock
	HasTimes  bool
}

// Rows flattens a result into schedule rows. It accepts courses and evening
// summaries from the store, catalog courses, and slices or pointers of
// those. A course without schedules yields one row with zero dates.
func Rows(data any) ([]ScheduleRow, error) {
	var out []ScheduleRow
	for _, item := range expand(data) {
		rows, err := rowsOf(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func rowsOf(item any) ([]ScheduleRow, error) {
	switch v := item.(type) {
	case ScheduleRow:
		return []ScheduleRow{v}, nil
	case store.Course:
		return storeCourseRows(&v), nil
	case *store.Course:
		return storeCourseRows(v), nil
	case store.EveningCourse:
		return eveningRows(&v), nil
	case *store.EveningCourse:
		return eveningRows(v), nil
	case catalog.Course:
		return catalogRows(&v), nil
	case *catalog.Course:
		return catalogRows(v), nil
	default:
		return nil, fmt.Errorf("cannot tabulate %T", item)
	}
}

func storeCourseRows(c *store.Course) []ScheduleRow {
	base := ScheduleRow{CourseCode: c.Code, CourseName: c.Name, DeliveryType: c.DeliveryType, Link: c.Link}
	if len(c.Schedules) == 0 {
		return []ScheduleRow{base}
	}
	rows := make([]ScheduleRow, 0, len(c.Schedules))
	for _, s := range c.Schedules {
		r := base
		r.Days = s.DayOfWeek
		r.StartDate, r.EndDate = s.StartDate, s.EndDate
		r.StartTime, r.EndTime, r.HasTimes = clocks(deref(s.StartTime), deref(s.EndTime))
		rows = append(rows, r)
	}
	return rows
}

func eveningRows(c *store.EveningCourse) []ScheduleRow {
	rows := make([]ScheduleRow, 0, len(c.MatchingSchedules))
	for _, m := range c.MatchingSchedules {
		r := ScheduleRow{CourseCode: c.CourseCode, CourseName: c.CourseName, Link: c.CourseLink, Days: m.Day}
		r.StartDate, _ = timeparse.ParseDate(m.StartDate)
		r.EndDate, _ = timeparse.ParseDate(m.EndDate)
		if start, ok := timeparse.ParseTime(m.Time); ok {
			r.StartTime, r.EndTime, r.HasTimes = start, start, true
		}
		rows = append(rows, r)
	}
	return rows
}

func catalogRows(c *catalog.Course) []ScheduleRow {
	base := ScheduleRow{CourseCode: c.Code, CourseName: c.Name, DeliveryType: c.DeliveryType, Link: c.Link}
	if len(c.Schedules) == 0 {
		return []ScheduleRow{base}
	}
	rows := make([]ScheduleRow, 0, len(c.Schedules))
	for _, s := range c.Schedules {
		r := base
		r.Days = s.DaysOfWeek
		r.StartDate, _ = timeparse.ParseDate(s.StartDate)
		r.EndDate, _ = timeparse.ParseDate(s.EndDate)
		r.StartTime, r.EndTime, r.HasTimes = clocks(s.StartTime, s.EndTime)
		rows = append(rows, r)
	}
	return rows
}

// clocks parses a start/end pair. A missing end time is taken as the start.
func clocks(start, end string) (timeparse.Clock, timeparse.Clock, bool) {
	if strings.TrimSpace(start) == "" {
		return timeparse.Clock{}, timeparse.Clock{}, false
	}
	s, ok := timeparse.ParseTime(start)
	if !ok {
		return timeparse.Clock{}, timeparse.Clock{}, false
	}
	e, ok := timeparse.ParseTime(end)
	if !ok || e.Before(s) {
		e = s
	}
	return s, e, true
}

// expand turns a slice or array into its elements; anything else is
// returned as a one-element list.
func expand(data any) []any {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []any{data}
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var weekdayNames = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
}

// ParseDays extracts weekdays from free text such as "Tuesday, Thursday",
// "Tuesdays and Thursdays" or "Mon/Wed". A word matches a day when one is a
// prefix of the other and the word has at least three letters. The result
// is ordered Sunday first without duplicates.
func ParseDays(s string) []time.Weekday {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	found := make(map[time.Weekday]bool)
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		for _, d := range weekdayNames {
			name := strings.ToLower(d.String())
			if strings.HasPrefix(name, w) || strings.HasPrefix(w, name) {
				found[d] = true
			}
		}
	}
	var out []time.Weekday
	for _, d := range weekdayNames {
		if found[d] {
			out = append(out, d)
		}
	}
	return out
}
