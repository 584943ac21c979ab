package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "courses.db"), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func writeCorpus(t *testing.T, courses ...*catalog.Course) *catalog.Corpus {
	t.Helper()
	corpus := catalog.NewCorpus(filepath.Join(t.TempDir(), "course_data"))
	for _, c := range courses {
		if _, err := corpus.Write(c); err != nil {
			t.Fatal(err)
		}
	}
	return corpus
}

func evening(day, start string) catalog.ScheduleEntry {
	return catalog.ScheduleEntry{StartDate: "2024-01-20", EndDate: "2024-04-15", DaysOfWeek: day, StartTime: start, EndTime: "9:00 PM"}
}

func fixtureCourses() []*catalog.Course {
	return []*catalog.Course{
		{Code: "HOSF 9489", Name: "Pastry", DeliveryType: DeliveryOnCampus, Link: "https://example.test/hosf9489",
			Schedules: []catalog.ScheduleEntry{evening("Tuesday, Thursday", "6:00 PM"), evening("Saturday", "9:00 AM")}},
		{Code: "HOSF 1000", Name: "Knife Skills", DeliveryType: DeliveryOnCampus,
			Schedules: []catalog.ScheduleEntry{evening("Monday", "10:00 AM")}},
		{Code: "HOSF 2000", Name: "Online Baking", DeliveryType: "Online",
			Schedules: []catalog.ScheduleEntry{evening("Tuesday", "7:00 PM")}},
		{Code: "WINE 2000", Name: "Wine Basics", DeliveryType: DeliveryOnCampus,
			Schedules: []catalog.ScheduleEntry{evening("Friday", "5:30 p.m.")}},
		{Code: "ACCT 1000", Name: "Ledgers", DeliveryType: DeliveryOnCampus},
	}
}

func loadFixtures(t *testing.T, s *Store) *LoadSummary {
	t.Helper()
	summary, err := NewLoader(s, writeCorpus(t, fixtureCourses()...), LoaderOptions{}, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return summary
}

func TestLoader_LoadsCoursesAndSchedules(t *testing.T) {
	s := openTestStore(t)
	summary := loadFixtures(t, s)

	if summary.Courses != 5 || summary.Schedules != 5 || summary.Errors != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	c, err := s.CourseByCode(context.Background(), "HOSF 9489")
	if err != nil {
		t.Fatalf("CourseByCode() error = %v", err)
	}
	if c.Prefix != "HOSF" || c.Number != "9489" {
		t.Errorf("prefix/number = %s/%s", c.Prefix, c.Number)
	}
	if len(c.Schedules) != 2 {
		t.Fatalf("schedules = %d, want 2", len(c.Schedules))
	}
	var found bool
	for _, sch := range c.Schedules {
		if sch.StartTime != nil && *sch.StartTime == "18:00:00" {
			found = true
			if sch.StartDate.Format(timeparse.DateLayout) != "2024-01-20" {
				t.Errorf("start date = %v", sch.StartDate)
			}
		}
	}
	if !found {
		t.Error("evening schedule not stored as 18:00:00")
	}
}

func TestLoader_UpsertReplacesSchedules(t *testing.T) {
	s := openTestStore(t)
	loadFixtures(t, s)

	updated := &catalog.Course{Code: "HOSF 9489", Name: "Advanced Pastry", DeliveryType: DeliveryOnCampus,
		Schedules: []catalog.ScheduleEntry{evening("Wednesday", "6:30 PM")}}
	if _, err := NewLoader(s, writeCorpus(t, updated), LoaderOptions{}, nil).Load(context.Background()); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	c, err := s.CourseByCode(context.Background(), "HOSF 9489")
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "Advanced Pastry" {
		t.Errorf("name = %q, want updated", c.Name)
	}
	if len(c.Schedules) != 1 || c.Schedules[0].DayOfWeek != "Wednesday" {
		t.Errorf("schedules = %+v, want replaced", c.Schedules)
	}

	all, _ := s.AllCourses(context.Background())
	if len(all) != 5 {
		t.Errorf("courses = %d, upsert should not drop others", len(all))
	}
}

func TestLoader_DuplicatesAndFailures(t *testing.T) {
	s := openTestStore(t)
	corpus := writeCorpus(t,
		&catalog.Course{Code: "HOSF 9489", Name: "Pastry A"},
		&catalog.Course{Code: "HOSF 9489", Name: "Pastry B"},
		&catalog.Course{Code: "BAD-CODE", Name: "Broken", Sections: []string{"x"}},
	)
	if err := os.WriteFile(filepath.Join(corpus.Dir(), "ZZZZ 0000 - junk.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	report := filepath.Join(t.TempDir(), "errors", "failed_courses.json")

	summary, err := NewLoader(s, corpus, LoaderOptions{FailureReport: report}, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if summary.Courses != 1 || summary.Duplicates != 1 || summary.Errors != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	c, _ := s.CourseByCode(context.Background(), "HOSF 9489")
	if c.Name != "Pastry A" {
		t.Errorf("first file should win, got %q", c.Name)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("failure report not written: %v", err)
	}
	var r FailureReport
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatal(err)
	}
	if len(r.FailedCourses) != 2 {
		t.Fatalf("failed courses = %+v", r.FailedCourses)
	}
	bad := r.FailedCourses[0]
	if bad.CourseCode != "BAD-CODE" || bad.Reason != ReasonInvalidCode || !bad.HasSections {
		t.Errorf("invalid code entry = %+v", bad)
	}
}

func TestLoader_TestModeAndCommits(t *testing.T) {
	s := openTestStore(t)
	var courses []*catalog.Course
	for _, code := range []string{"AAAA 1", "BBBB 2", "CCCC 3", "DDDD 4", "EEEE 5", "FFFF 6", "GGGG 7"} {
		courses = append(courses, &catalog.Course{Code: code, Name: "Course"})
	}

	summary, err := NewLoader(s, writeCorpus(t, courses...), LoaderOptions{TestMode: true, CommitEvery: 2}, nil).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Files != TestModeFiles || summary.Courses != TestModeFiles {
		t.Errorf("summary = %+v", summary)
	}
	// two full batches plus the final commit
	if summary.Commits != 3 {
		t.Errorf("commits = %d, want 3", summary.Commits)
	}
}

func TestLoader_Reset(t *testing.T) {
	s := openTestStore(t)
	loadFixtures(t, s)

	one := &catalog.Course{Code: "WINE 3000", Name: "Reds"}
	if _, err := NewLoader(s, writeCorpus(t, one), LoaderOptions{Reset: true}, nil).Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	all, _ := s.AllCourses(context.Background())
	if len(all) != 1 {
		t.Errorf("courses after reset = %d, want 1", len(all))
	}
}

func TestBuildSchedules(t *testing.T) {
	rows := BuildSchedules(1, "HOSF 9489", []catalog.ScheduleEntry{
		{StartDate: "2024-01-20", EndDate: "2024-04-15", DaysOfWeek: "Tuesday", StartTime: "6:00 PM", EndTime: "TBA"},
		{StartDate: "TBA", EndDate: "2024-04-15", DaysOfWeek: "Tuesday"},
		{StartDate: "2024-05-01", EndDate: "2024-04-15", DaysOfWeek: "Tuesday"},
		{StartDate: "20Jan2024", EndDate: "January 27, 2024", DaysOfWeek: "Saturday"},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].StartTime == nil || *rows[0].StartTime != "18:00:00" || rows[0].EndTime != nil {
		t.Errorf("times = %v/%v", rows[0].StartTime, rows[0].EndTime)
	}
	if rows[1].EndDate.Format(timeparse.DateLayout) != "2024-01-27" {
		t.Errorf("end date = %v", rows[1].EndDate)
	}
}

func TestQueries_Departments(t *testing.T) {
	s := openTestStore(t)
	loadFixtures(t, s)

	got, err := s.Departments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "HOSF" || got[1] != "WINE" {
		t.Errorf("Departments() = %v, want [HOSF WINE]", got)
	}
}

func TestQueries_InPersonByDepartment(t *testing.T) {
	s := openTestStore(t)
	loadFixtures(t, s)

	got, err := s.InPersonByDepartment(context.Background(), "hosf")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Code != "HOSF 1000" || got[1].Code != "HOSF 9489" {
		t.Errorf("InPersonByDepartment() = %v", codes(got))
	}

	all, _ := s.CoursesByDepartment(context.Background(), "HOSF")
	if len(all) != 3 {
		t.Errorf("CoursesByDepartment() = %v", codes(all))
	}
}

func TestQueries_Evening(t *testing.T) {
	s := openTestStore(t)
	loadFixtures(t, s)
	ctx := context.Background()
	after := timeparse.NewClock(17, 0)

	tests := []struct {
		name   string
		prefix string
		days   []string
		want   []string
	}{
		{"single day", "HOSF", []string{"Tuesday"}, []string{"HOSF 9489"}},
		{"any of several", "HOSF", []string{"Monday", "thursday"}, []string{"HOSF 9489"}},
		{"morning only", "HOSF", []string{"Saturday"}, nil},
		{"three days", "WINE", []string{"Monday", "Wednesday", "Friday"}, []string{"WINE 2000"}},
		{"percent is literal", "HOSF", []string{"%"}, nil},
		{"underscore is literal", "HOSF", []string{"T_esday"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.EveningByDays(ctx, tt.prefix, tt.days, after)
			if err != nil {
				t.Fatal(err)
			}
			if c := codes(got); len(c) != len(tt.want) || (len(c) > 0 && c[0] != tt.want[0]) {
				t.Errorf("EveningByDays() = %v, want %v", c, tt.want)
			}
		})
	}

	if _, err := s.EveningByDays(ctx, "HOSF", []string{" "}, after); !errors.Is(err, ErrNoDays) {
		t.Errorf("empty days error = %v, want ErrNoDays", err)
	}
}

func TestQueries_EveningSummary(t *testing.T) {
	s := openTestStore(t)
	loadFixtures(t, s)

	got, err := s.EveningSummary(context.Background(), "HOSF", []string{"Tuesday", "Saturday"}, timeparse.NewClock(17, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("summary = %+v", got)
	}
	m := got[0].MatchingSchedules
	if len(m) != 1 || m[0].Time != "06:00 PM" || m[0].StartDate != "2024-01-20" {
		t.Errorf("matching schedules = %+v, want only the evening one", m)
	}
	if got[0].CourseLink != "https://example.test/hosf9489" {
		t.Errorf("link = %q", got[0].CourseLink)
	}
}

func TestCourseByCode_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CourseByCode(context.Background(), "NOPE 1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func codes(cs []Course) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Code)
	}
	return out
}
