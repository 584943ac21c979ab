package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

// DeliveryOnCampus is the delivery type of in-person courses.
const DeliveryOnCampus = "On Campus"

// ErrNoDays is returned by evening queries given no days.
var ErrNoDays = errors.New("at least one day is required")

// MatchingSchedule is a schedule that satisfied an evening query.
type MatchingSchedule struct {
	Day       string `json:"day" yaml:"day"`
	Time      string `json:"time,omitempty" yaml:"time,omitempty"`
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`
}

// EveningCourse is one row of the evening summary.
type EveningCourse struct {
	CourseCode        string             `json:"course_code" yaml:"course_code"`
	CourseName        string             `json:"course_name" yaml:"course_name"`
	CourseLink        string             `json:"course_link" yaml:"course_link"`
	MatchingSchedules []MatchingSchedule `json:"matching_schedules" yaml:"matching_schedules"`
}

// Departments returns the distinct prefixes of courses that have schedules.
func (s *Store) Departments(ctx context.Context) ([]string, error) {
	var prefixes []string
	err := s.db.WithContext(ctx).
		Model(&Course{}).
		Distinct("course_prefix").
		Where("EXISTS (SELECT 1 FROM schedules WHERE schedules.course_id = courses.id)").
		Order("course_prefix").
		Pluck("course_prefix", &prefixes).Error
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return prefixes, nil
}

// CoursesByDepartment returns every course with the given prefix.
func (s *Store) CoursesByDepartment(ctx context.Context, prefix string) ([]Course, error) {
	var courses []Course
	err := s.withSchedules(ctx).
		Where("course_prefix = ?", strings.ToUpper(prefix)).
		Order("course_number").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("courses for %s: %w", prefix, err)
	}
	return courses, nil
}

// InPersonByDepartment returns on-campus courses of a department that have
// at least one schedule, ordered by course number.
func (s *Store) InPersonByDepartment(ctx context.Context, prefix string) ([]Course, error) {
	var courses []Course
	err := s.withSchedules(ctx).
		Where("course_prefix = ? AND course_delivery_type = ?", strings.ToUpper(prefix), DeliveryOnCampus).
		Where("EXISTS (SELECT 1 FROM schedules WHERE schedules.course_id = courses.id)").
		Order("course_number").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("in-person courses for %s: %w", prefix, err)
	}
	return courses, nil
}

// EveningByDays returns on-campus courses of a department with a schedule
// starting at or after `after` on any of days. Day matching is a
// case-insensitive substring match, so "Tue" matches "Tuesday, Thursday".
func (s *Store) EveningByDays(ctx context.Context, prefix string, days []string, after timeparse.Clock) ([]Course, error) {
	days = cleanDays(days)
	if len(days) == 0 {
		return nil, ErrNoDays
	}

	cond, args := eveningCondition(days, after)
	var courses []Course
	err := s.withSchedules(ctx).
		Where("course_prefix = ? AND course_delivery_type = ?", strings.ToUpper(prefix), DeliveryOnCampus).
		Where("EXISTS (SELECT 1 FROM schedules WHERE schedules.course_id = courses.id AND "+cond+")", args...).
		Order("course_number").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("evening courses for %s: %w", prefix, err)
	}
	return courses, nil
}

// EveningSummary is EveningByDays reduced to the matching schedules of each
// course.
func (s *Store) EveningSummary(ctx context.Context, prefix string, days []string, after timeparse.Clock) ([]EveningCourse, error) {
	courses, err := s.EveningByDays(ctx, prefix, days, after)
	if err != nil {
		return nil, err
	}
	days = cleanDays(days)

	out := make([]EveningCourse, 0, len(courses))
	for _, c := range courses {
		var matching []MatchingSchedule
		for _, sch := range c.Schedules {
			start, ok := sch.Clock()
			if !ok || start.Before(after) || !matchesAnyDay(sch.DayOfWeek, days) {
				continue
			}
			matching = append(matching, MatchingSchedule{
				Day:       sch.DayOfWeek,
				Time:      start.Kitchen(),
				StartDate: sch.StartDate.Format(timeparse.DateLayout),
				EndDate:   sch.EndDate.Format(timeparse.DateLayout),
			})
		}
		if len(matching) == 0 {
			continue
		}
		out = append(out, EveningCourse{
			CourseCode:        c.Code,
			CourseName:        c.Name,
			CourseLink:        c.Link,
			MatchingSchedules: matching,
		})
	}
	return out, nil
}

// CourseByCode returns one course with its schedules.
func (s *Store) CourseByCode(ctx context.Context, code string) (*Course, error) {
	var c Course
	err := s.withSchedules(ctx).Where("course_code = ?", code).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", code, err)
	}
	return &c, nil
}

// AllCourses returns every course with its schedules.
func (s *Store) AllCourses(ctx context.Context) ([]Course, error) {
	var courses []Course
	if err := s.withSchedules(ctx).Order("course_code").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Clock parses the schedule start time.
func (sch Schedule) Clock() (timeparse.Clock, bool) {
	if sch.StartTime == nil {
		return timeparse.Clock{}, false
	}
	return timeparse.ParseTime(*sch.StartTime)
}

func (s *Store) withSchedules(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Schedules", func(db *gorm.DB) *gorm.DB {
		return db.Order("start_date, start_time, id")
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func eveningCondition(days []string, after timeparse.Clock) (string, []any) {
	likes := make([]string, 0, len(days))
	args := []any{after.String()}
	for _, d := range days {
		likes = append(likes, `LOWER(schedules.day_of_week) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(d))+"%")
	}
	return "schedules.start_time >= ? AND (" + strings.Join(likes, " OR ") + ")", args
}

func cleanDays(days []string) []string {
	out := days[:0:0]
	for _, d := range days {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func matchesAnyDay(value string, days []string) bool {
	v := strings.ToLower(value)
	for _, d := range days {
		if strings.Contains(v, strings.ToLower(d)) {
			return true
		}
	}
	return false
}
