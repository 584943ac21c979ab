package output

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/version"
)

var icsDays = map[time.Weekday]string{
	time.Sunday: "SU", time.Monday: "MO", time.Tuesday: "TU", time.Wednesday: "WE",
	time.Thursday: "TH", time.Friday: "FR", time.Saturday: "SA",
}

// ICSWriter writes an iCalendar feed with one weekly recurring event per
// schedule. Schedules without dates, times or recognisable days are skipped.
type ICSWriter struct {
	w       io.Writer
	name    string
	loc     *time.Location
	rows    []ScheduleRow
	flushed bool
	now     func() time.Time
}

// NewICSWriter creates a calendar writer. Event times are interpreted in loc.
func NewICSWriter(w io.Writer, name string, loc *time.Location) *ICSWriter {
	if loc == nil {
		loc = time.Local
	}
	return &ICSWriter{w: w, name: name, loc: loc, now: time.Now}
}

// Write flattens data into schedule rows.
func (w *ICSWriter) Write(data any) error {
	rows, err := Rows(data)
	if err != nil {
		return err
	}
	w.rows = append(w.rows, rows...)
	return nil
}

// WriteAll flattens every item.
func (w *ICSWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush renders the calendar. Later calls are no-ops.
func (w *ICSWriter) Flush() error {
	if w.flushed {
		return nil
	}
	w.flushed = true

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//coursesched//" + version.String() + "//EN")
	if w.name != "" {
		cal.SetName(w.name)
	}

	stamp := w.now().UTC()
	skipped := 0
	for _, r := range w.rows {
		if !w.addEvent(cal, r, stamp) {
			skipped++
		}
	}
	if skipped > 0 {
		logger.Debug("schedules left out of calendar", "skipped", skipped, "total", len(w.rows))
	}

	_, err := io.WriteString(w.w, cal.Serialize())
	return err
}

// Close flushes the writer.
func (w *ICSWriter) Close() error {
	return w.Flush()
}

func (w *ICSWriter) addEvent(cal *ics.Calendar, r ScheduleRow, stamp time.Time) bool {
	days := ParseDays(r.Days)
	if r.StartDate.IsZero() || r.EndDate.IsZero() || !r.HasTimes || len(days) == 0 {
		return false
	}

	first, ok := firstOccurrence(r.StartDate, r.EndDate, days)
	if !ok {
		return false
	}
	start := time.Date(first.Year(), first.Month(), first.Day(), r.StartTime.Hour, r.StartTime.Minute, r.StartTime.Second, 0, w.loc)
	end := time.Date(first.Year(), first.Month(), first.Day(), r.EndTime.Hour, r.EndTime.Minute, r.EndTime.Second, 0, w.loc)
	until := time.Date(r.EndDate.Year(), r.EndDate.Month(), r.EndDate.Day(), 23, 59, 59, 0, w.loc)

	byDay := make([]string, 0, len(days))
	for _, d := range days {
		byDay = append(byDay, icsDays[d])
	}

	event := cal.AddEvent(eventUID(r))
	event.SetDtStampTime(stamp)
	event.SetStartAt(start)
	event.SetEndAt(end)
	event.SetSummary(strings.TrimSpace(r.CourseCode + " " + r.CourseName))
	if r.Link != "" {
		event.SetURL(r.Link)
	}
	if r.DeliveryType != "" {
		event.SetDescription(r.DeliveryType)
	}
	event.AddRrule(fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;UNTIL=%s",
		strings.Join(byDay, ","), until.UTC().Format("20060102T150405Z")))
	return true
}

// firstOccurrence returns the first date in [from, to] falling on one of days.
func firstOccurrence(from, to time.Time, days []time.Weekday) (time.Time, bool) {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, wd := range days {
			if d.Weekday() == wd {
				return d, true
			}
		}
		if d.Sub(from) > 7*24*time.Hour {
			break
		}
	}
	return time.Time{}, false
}

func eventUID(r ScheduleRow) string {
	h := sha1.New() //#nosec G401 -- identifier, not security
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", r.CourseCode, r.Days, r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly), r.StartTime)
	return hex.EncodeToString(h.Sum(nil))[:16] + "@coursesched"
}
