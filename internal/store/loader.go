package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/metrics"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

// Commit intervals for full and test loads.
const (
	DefaultCommitEvery     = 100
	DefaultTestCommitEvery = 5
	TestModeFiles          = 5
)

// ReasonInvalidCode is the failure reason for codes that do not split.
const ReasonInvalidCode = "Invalid course code format"

// upsertColumns are overwritten when a course code already exists.
var upsertColumns = []string{
	"course_prefix", "course_number", "course_name", "course_delivery_type",
	"prereqs", "hours", "fees", "course_description", "course_link",
}

// FailedCourse describes a corpus file that could not be loaded.
type FailedCourse struct {
	File         string `json:"file"`
	CourseCode   string `json:"course_code"`
	Reason       string `json:"reason"`
	HasSections  bool   `json:"has_sections"`
	HasSchedules bool   `json:"has_schedules"`
}

// FailureReport is written when any course fails to load.
type FailureReport struct {
	Timestamp     time.Time      `json:"timestamp"`
	FailedCourses []FailedCourse `json:"failed_courses"`
}

// LoadSummary reports what a load did.
type LoadSummary struct {
	RunID      string         `json:"run_id"`
	Files      int            `json:"files"`
	Courses    int            `json:"courses"`
	Schedules  int            `json:"schedules"`
	Errors     int            `json:"errors"`
	Duplicates int            `json:"duplicates"`
	Commits    int            `json:"commits"`
	Failed     []FailedCourse `json:"failed_courses,omitempty"`
	ReportPath string         `json:"report_path,omitempty"`
}

// LoaderOptions control a load.
type LoaderOptions struct {
	// TestMode loads only the first TestModeFiles files and commits more often.
	TestMode bool
	// CommitEvery overrides the commit interval.
	CommitEvery int
	// Reset drops and recreates the schema first.
	Reset bool
	// FailureReport is where the failure report is written, if any.
	FailureReport string
}

// Loader upserts corpus files into the store.
type Loader struct {
	store   *Store
	corpus  *catalog.Corpus
	opts    LoaderOptions
	metrics *metrics.Metrics
}

// NewLoader creates a loader reading from corpus.
func NewLoader(s *Store, corpus *catalog.Corpus, opts LoaderOptions, m *metrics.Metrics) *Loader {
	if opts.CommitEvery <= 0 {
		opts.CommitEvery = DefaultCommitEvery
		if opts.TestMode {
			opts.CommitEvery = DefaultTestCommitEvery
		}
	}
	return &Loader{store: s, corpus: corpus, opts: opts, metrics: m}
}

// Load reads every corpus file in name order and upserts it with its
// schedules. Per-file problems are recorded and skipped; only setup failures,
// commit failures and cancellation return an error. On error the open
// batch is rolled back.
func (l *Loader) Load(ctx context.Context) (*LoadSummary, error) {
	summary := &LoadSummary{RunID: uuid.NewString()}
	log := logger.With("run_id", summary.RunID)

	if l.opts.Reset {
		if err := l.store.Reset(); err != nil {
			return nil, err
		}
	} else if err := l.store.Migrate(); err != nil {
		return nil, err
	}

	files, err := l.corpus.Files()
	if err != nil {
		return nil, err
	}
	if l.opts.TestMode && len(files) > TestModeFiles {
		files = files[:TestModeFiles]
		log.Info("test mode", "files", files)
	}
	summary.Files = len(files)
	log.Info("loading courses", "dir", l.corpus.Dir(), "files", len(files), "reset", l.opts.Reset)

	tx := l.store.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	seen := make(map[string]struct{})
	uncommitted := 0

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			tx.Rollback()
			return summary, err
		}

		course, err := l.corpus.Read(name)
		if err != nil {
			l.fail(log, summary, FailedCourse{File: name, CourseCode: "Unknown", Reason: err.Error()})
			continue
		}

		prefix, number, ok := catalog.SplitCourseCode(course.Code)
		if course.Code == "" || !ok {
			l.fail(log, summary, failure(name, course, ReasonInvalidCode))
			continue
		}
		if _, dup := seen[course.Code]; dup {
			log.Warn("skipping duplicate course in batch", "file", name, "course_code", course.Code)
			summary.Duplicates++
			l.metrics.IncLoad("duplicate")
			continue
		}

		n, err := upsertCourse(tx, course, prefix, number)
		if err != nil {
			l.fail(log, summary, failure(name, course, err.Error()))
			continue
		}
		seen[course.Code] = struct{}{}
		summary.Courses++
		summary.Schedules += n
		uncommitted++
		l.metrics.IncLoad(metrics.OutcomeSuccess)

		if uncommitted >= l.opts.CommitEvery {
			if err := tx.Commit().Error; err != nil {
				return summary, fmt.Errorf("commit batch: %w", err)
			}
			summary.Commits++
			l.metrics.IncCommit()
			uncommitted = 0
			log.Info("progress", "courses", summary.Courses, "schedules", summary.Schedules, "errors", summary.Errors)

			tx = l.store.db.WithContext(ctx).Begin()
			if tx.Error != nil {
				return summary, fmt.Errorf("begin transaction: %w", tx.Error)
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return summary, fmt.Errorf("final commit: %w", err)
	}
	summary.Commits++
	l.metrics.IncCommit()

	if len(summary.Failed) > 0 && l.opts.FailureReport != "" {
		if err := WriteFailureReport(l.opts.FailureReport, summary.Failed); err != nil {
			log.Error("failed to save failure report", "error", err)
		} else {
			summary.ReportPath = l.opts.FailureReport
			log.Info("saved failure report", "path", l.opts.FailureReport)
		}
	}

	log.Info("load finished",
		"courses", summary.Courses,
		"schedules", summary.Schedules,
		"errors", summary.Errors,
		"duplicates", summary.Duplicates,
		"failed", len(summary.Failed))
	return summary, nil
}

func (l *Loader) fail(log *slog.Logger, summary *LoadSummary, f FailedCourse) {
	log.Warn("skipping course", "file", f.File, "course_code", f.CourseCode, "reason", f.Reason)
	summary.Failed = append(summary.Failed, f)
	summary.Errors++
	l.metrics.IncLoad(metrics.OutcomeError)
}

func failure(file string, c *catalog.Course, reason string) FailedCourse {
	return FailedCourse{
		File:         file,
		CourseCode:   c.Code,
		Reason:       reason,
		HasSections:  len(c.Sections) > 0,
		HasSchedules: len(c.Schedules) > 0,
	}
}

// upsertCourse writes the course row and replaces its schedules inside a
// savepoint, so a failed course leaves the rest of the batch intact.
func upsertCourse(tx *gorm.DB, c *catalog.Course, prefix, number string) (int, error) {
	const sp = "course_upsert"
	if err := tx.SavePoint(sp).Error; err != nil {
		return 0, err
	}

	n, err := writeCourse(tx, c, prefix, number)
	if err != nil {
		if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
			return 0, fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return 0, err
	}
	return n, nil
}

func writeCourse(tx *gorm.DB, c *catalog.Course, prefix, number string) (int, error) {
	row := Course{
		Code:         c.Code,
		Prefix:       prefix,
		Number:       number,
		Name:         c.Name,
		DeliveryType: c.DeliveryType,
		Prereqs:      c.Prereqs,
		Hours:        c.Hours,
		Fees:         c.Fees,
		Description:  c.Description,
		Link:         c.Link,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_code"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Omit(clause.Associations).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("upsert course: %w", err)
	}

	var saved Course
	if err := tx.Select("id").Where("course_code = ?", c.Code).Take(&saved).Error; err != nil {
		return 0, fmt.Errorf("lookup course id: %w", err)
	}
	id := saved.ID

	if err := tx.Where("course_id = ?", id).Delete(&Schedule{}).Error; err != nil {
		return 0, fmt.Errorf("delete schedules: %w", err)
	}

	schedules := BuildSchedules(id, c.Code, c.Schedules)
	if len(schedules) > 0 {
		if err := tx.Create(&schedules).Error; err != nil {
			return 0, fmt.Errorf("insert schedules: %w", err)
		}
	}
	return len(schedules), nil
}

// BuildSchedules converts extracted entries into rows. Entries without two
// parseable dates, or ending before they start, are dropped; unparseable
// times are stored as NULL.
func BuildSchedules(courseID uint, code string, entries []catalog.ScheduleEntry) []Schedule {
	out := make([]Schedule, 0, len(entries))
	for _, e := range entries {
		start, okStart := timeparse.ParseDate(e.StartDate)
		end, okEnd := timeparse.ParseDate(e.EndDate)
		if !okStart || !okEnd {
			logger.Debug("dropping schedule without dates", "course_code", code, "start_date", e.StartDate, "end_date", e.EndDate)
			continue
		}
		if end.Before(start) {
			logger.Warn("dropping schedule ending before it starts", "course_code", code, "start_date", e.StartDate, "end_date", e.EndDate)
			continue
		}
		out = append(out, Schedule{
			CourseID:  courseID,
			StartDate: start,
			EndDate:   end,
			DayOfWeek: e.DaysOfWeek,
			StartTime: clockPtr(e.StartTime),
			EndTime:   clockPtr(e.EndTime),
		})
	}
	return out
}

func clockPtr(s string) *string {
	c, ok := timeparse.ParseTime(s)
	if !ok {
		return nil
	}
	v := c.String()
	return &v
}

// WriteFailureReport saves the failed courses as JSON at path.
func WriteFailureReport(path string, failed []FailedCourse) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(FailureReport{Timestamp: time.Now(), FailedCourses: failed}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
