// Package reconcile compares the course corpus on disk with the courses
// stored in the database without modifying either.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jmylchreest/coursesched/internal/store"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

// ScheduleKey is a schedule reduced to comparable, normalized fields.
type ScheduleKey struct {
	StartDate string
	EndDate   string
	Days      string
	StartTime string
	EndTime   string
}

// Side is one source's view of a course.
type Side struct {
	Code      string
	Schedules []ScheduleKey
}

// UpdatedCourse is a course present on both sides whose schedules differ.
type UpdatedCourse struct {
	CourseCode    string `json:"course_code" yaml:"course_code"`
	JSONSchedules int    `json:"json_schedules" yaml:"json_schedules"`
	DBSchedules   int    `json:"db_schedules" yaml:"db_schedules"`
}

// Result is the comparison report.
type Result struct {
	JSONCourses              int `json:"json_courses" yaml:"json_courses"`
	DBCourses                int `json:"db_courses" yaml:"db_courses"`
	JSONSchedules            int `json:"json_schedules" yaml:"json_schedules"`
	DBSchedules              int `json:"db_schedules" yaml:"db_schedules"`
	JSONCoursesWithSchedules int `json:"json_courses_with_schedules" yaml:"json_courses_with_schedules"`
	DBCoursesWithSchedules   int `json:"db_courses_with_schedules" yaml:"db_courses_with_schedules"`
	OnlyInJSON               int `json:"only_in_json" yaml:"only_in_json"`
	OnlyInDB                 int `json:"only_in_db" yaml:"only_in_db"`
	InBoth                   int `json:"in_both" yaml:"in_both"`

	UpdatedCourses []UpdatedCourse `json:"updated_courses" yaml:"updated_courses"`
	NewCourses     []string        `json:"new_courses" yaml:"new_courses"`
	MissingCourses []string        `json:"missing_courses" yaml:"missing_courses"`
}

// FromCatalog builds the file side from corpus entries. Records without a
// code are ignored; a later file with the same code replaces an earlier one.
func FromCatalog(entries []catalog.Entry) map[string]Side {
	out := make(map[string]Side, len(entries))
	for _, e := range entries {
		c := e.Course
		if c == nil || c.Code == "" {
			continue
		}
		keys := make([]ScheduleKey, 0, len(c.Schedules))
		for _, s := range c.Schedules {
			keys = append(keys, NewKey(s.StartDate, s.EndDate, s.DaysOfWeek, s.StartTime, s.EndTime))
		}
		out[c.Code] = Side{Code: c.Code, Schedules: keys}
	}
	return out
}

// FromStore builds the database side from stored courses.
func FromStore(courses []store.Course) map[string]Side {
	out := make(map[string]Side, len(courses))
	for _, c := range courses {
		keys := make([]ScheduleKey, 0, len(c.Schedules))
		for _, s := range c.Schedules {
			keys = append(keys, NewKey(
				s.StartDate.Format(timeparse.DateLayout),
				s.EndDate.Format(timeparse.DateLayout),
				s.DayOfWeek,
				deref(s.StartTime),
				deref(s.EndTime),
			))
		}
		out[c.Code] = Side{Code: c.Code, Schedules: keys}
	}
	return out
}

// Load reads both sides. limit > 0 keeps only the first limit corpus files.
func Load(ctx context.Context, corpus *catalog.Corpus, db *store.Store, limit int) (files, stored map[string]Side, err error) {
	entries, err := corpus.Load(catalog.LoadOptions{Limit: limit})
	if err != nil {
		return nil, nil, err
	}
	courses, err := db.AllCourses(ctx)
	if err != nil {
		return nil, nil, err
	}
	return FromCatalog(entries), FromStore(courses), nil
}

// NewKey normalizes the schedule fields: dates to YYYY-MM-DD, times to
// HH:MM:SS, days trimmed. Values that do not parse are kept trimmed.
func NewKey(startDate, endDate, days, startTime, endTime string) ScheduleKey {
	return ScheduleKey{
		StartDate: normalizeOptional(startDate, timeparse.NormalizeDate),
		EndDate:   normalizeOptional(endDate, timeparse.NormalizeDate),
		Days:      strings.TrimSpace(days),
		StartTime: normalizeOptional(startTime, timeparse.NormalizeTime),
		EndTime:   normalizeOptional(endTime, timeparse.NormalizeTime),
	}
}

// Compare reports the differences between the file and database sides.
func Compare(files, db map[string]Side) *Result {
	r := &Result{
		JSONCourses:    len(files),
		DBCourses:      len(db),
		UpdatedCourses: []UpdatedCourse{},
		NewCourses:     []string{},
		MissingCourses: []string{},
	}

	for code, f := range files {
		r.JSONSchedules += len(f.Schedules)
		if len(f.Schedules) > 0 {
			r.JSONCoursesWithSchedules++
		}

		d, ok := db[code]
		if !ok {
			r.NewCourses = append(r.NewCourses, code)
			continue
		}
		r.InBoth++
		fs, ds := keySet(f.Schedules), keySet(d.Schedules)
		if !equalSets(fs, ds) {
			r.UpdatedCourses = append(r.UpdatedCourses, UpdatedCourse{
				CourseCode:    code,
				JSONSchedules: len(fs),
				DBSchedules:   len(ds),
			})
		}
	}
	for code, d := range db {
		r.DBSchedules += len(d.Schedules)
		if len(d.Schedules) > 0 {
			r.DBCoursesWithSchedules++
		}
		if _, ok := files[code]; !ok {
			r.MissingCourses = append(r.MissingCourses, code)
		}
	}

	r.OnlyInJSON = len(r.NewCourses)
	r.OnlyInDB = len(r.MissingCourses)
	sort.Strings(r.NewCourses)
	sort.Strings(r.MissingCourses)
	sort.Slice(r.UpdatedCourses, func(i, j int) bool {
		return r.UpdatedCourses[i].CourseCode < r.UpdatedCourses[j].CourseCode
	})
	return r
}

// WriteText prints the report for humans.
func (r *Result) WriteText(w io.Writer) error {
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nDATA COMPARISON RESULTS\n%s\n", rule, rule)
	fmt.Fprintf(&b, "JSON Files:\n")
	fmt.Fprintf(&b, "  - Total courses: %d\n", r.JSONCourses)
	fmt.Fprintf(&b, "  - Total schedules: %d\n", r.JSONSchedules)
	fmt.Fprintf(&b, "  - Courses with schedules: %d\n", r.JSONCoursesWithSchedules)
	fmt.Fprintf(&b, "\nDatabase:\n")
	fmt.Fprintf(&b, "  - Total courses: %d\n", r.DBCourses)
	fmt.Fprintf(&b, "  - Total schedules: %d\n", r.DBSchedules)
	fmt.Fprintf(&b, "  - Courses with schedules: %d\n", r.DBCoursesWithSchedules)
	fmt.Fprintf(&b, "\nComparison:\n")
	fmt.Fprintf(&b, "  - Courses in both: %d\n", r.InBoth)
	fmt.Fprintf(&b, "  - New courses (only in JSON): %d\n", r.OnlyInJSON)
	fmt.Fprintf(&b, "  - Missing courses (only in DB): %d\n", r.OnlyInDB)
	fmt.Fprintf(&b, "  - Updated courses (schedule mismatch): %d\n", len(r.UpdatedCourses))

	if len(r.NewCourses) > 0 {
		fmt.Fprintf(&b, "\nNew courses to be added:\n")
		for _, c := range r.NewCourses {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}
	if len(r.UpdatedCourses) > 0 {
		fmt.Fprintf(&b, "\nCourses with updated schedules:\n")
		for _, u := range r.UpdatedCourses {
			fmt.Fprintf(&b, "  - %s (Scraped: %d schedules vs. DB: %d schedules)\n", u.CourseCode, u.JSONSchedules, u.DBSchedules)
		}
	}
	if len(r.MissingCourses) > 0 {
		fmt.Fprintf(&b, "\nMissing courses to be removed:\n")
		for _, c := range r.MissingCourses {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}
	fmt.Fprintf(&b, "%s\n", rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// InSync reports whether both sides hold the same courses and schedules.
func (r *Result) InSync() bool {
	return r.OnlyInJSON == 0 && r.OnlyInDB == 0 && len(r.UpdatedCourses) == 0
}

func keySet(keys []ScheduleKey) map[ScheduleKey]struct{} {
	set := make(map[ScheduleKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func equalSets(a, b map[ScheduleKey]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func normalizeOptional(s string, fn func(string) string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return fn(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
