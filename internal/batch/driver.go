// Package batch runs schedule extraction over the course corpus, resuming
// from a checkpoint and persisting each annotated course as it goes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/coursesched/internal/checkpoint"
	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/metrics"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/extractor"
)

// DefaultFlushEvery is how many newly processed codes trigger a checkpoint write.
const DefaultFlushEvery = 10

// Outcome labels for processed courses.
const (
	OutcomeNoSections   = "no_sections"
	OutcomeShortCircuit = "short_circuit"
	OutcomeExtracted    = "extracted"
	OutcomeEmpty        = "empty"
	OutcomeFailed       = "failed"
)

// Source yields the courses to process.
type Source interface {
	Load(opts catalog.LoadOptions) ([]catalog.Entry, error)
}

// Sink persists an annotated course read from file.
type Sink interface {
	Rewrite(file string, course *catalog.Course) (string, error)
}

// Options control one run.
type Options struct {
	// Resume skips codes already in the checkpoint.
	Resume bool
	// Force re-extracts every selected course, ignoring the checkpoint and
	// any cached provider response.
	Force bool
	// FlushEvery is the checkpoint write interval in newly processed codes.
	FlushEvery int
	// Limit and CodePrefix narrow the source selection.
	Limit      int
	CodePrefix string
}

// DefaultOptions resumes and flushes every DefaultFlushEvery codes.
func DefaultOptions() Options {
	return Options{Resume: true, FlushEvery: DefaultFlushEvery}
}

// Summary reports what a run did.
type Summary struct {
	RunID string

	Total            int
	Filtered         int
	Skipped          int
	NoSections       int
	ShortCircuited   int
	WithSchedules    int
	WithoutSchedules int
	Failed           int
	PersistErrors    int

	Duration time.Duration
}

// Processed returns the number of courses handled in this run.
func (s *Summary) Processed() int {
	return s.NoSections + s.ShortCircuited + s.WithSchedules + s.WithoutSchedules
}

// LogValue implements slog.LogValuer.
func (s *Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int("total", s.Total),
		slog.Int("filtered", s.Filtered),
		slog.Int("skipped", s.Skipped),
		slog.Int("no_sections", s.NoSections),
		slog.Int("short_circuited", s.ShortCircuited),
		slog.Int("with_schedules", s.WithSchedules),
		slog.Int("without_schedules", s.WithoutSchedules),
		slog.Int("failed", s.Failed),
		slog.Duration("duration", s.Duration),
	)
}

// Driver runs extraction sequentially over a corpus.
type Driver struct {
	source     Source
	sink       Sink
	extractor  extractor.Extractor
	checkpoint *checkpoint.Store
	metrics    *metrics.Metrics
	opts       Options
}

// Option configures a Driver.
type Option func(*Driver)

// WithSink overrides where annotated courses are written.
func WithSink(s Sink) Option {
	return func(d *Driver) { d.sink = s }
}

// WithMetrics records per-course outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithOptions sets the run options.
func WithOptions(o Options) Option {
	return func(d *Driver) { d.opts = o }
}

// NewDriver creates a driver that reads from and writes back to corpus.
func NewDriver(corpus *catalog.Corpus, ext extractor.Extractor, store *checkpoint.Store, opts ...Option) *Driver {
	d := &Driver{
		source:     corpus,
		sink:       corpus,
		extractor:  ext,
		checkpoint: store,
		opts:       DefaultOptions(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.opts.FlushEvery <= 0 {
		d.opts.FlushEvery = DefaultFlushEvery
	}
	return d
}

// Run processes the selected courses. The checkpoint is flushed on every
// exit path, including cancellation; a cancelled run returns ctx.Err()
// alongside the partial summary.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	log := logger.With("run_id", summary.RunID)

	entries, err := d.source.Load(catalog.LoadOptions{Limit: d.opts.Limit, CodePrefix: d.opts.CodePrefix})
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	summary.Total = len(entries)

	// A forced run still merges into the saved set so that reprocessing a
	// few courses does not forget the rest.
	processed := checkpoint.NewSet()
	if d.opts.Resume || d.opts.Force {
		processed, err = d.checkpoint.Load()
		if err != nil {
			return nil, err
		}
	}
	log.Info("starting extraction",
		"courses", len(entries),
		"previously_processed", len(processed),
		"extractor", d.extractor.Name(),
		"force", d.opts.Force)

	pending := 0
	flush := func() error {
		if err := d.checkpoint.Save(processed); err != nil {
			return err
		}
		pending = 0
		return nil
	}

	var runErr error
	for _, entry := range entries {
		course := entry.Course
		if !course.Extractable() {
			log.Debug("filtered course", "file", entry.File, "course_name", course.Name)
			summary.Filtered++
			continue
		}
		if !d.opts.Force && processed.Has(course.Code) {
			summary.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		outcome := d.process(ctx, log, course)
		if outcome == OutcomeFailed && ctx.Err() != nil {
			// Interrupted mid-extraction; leave the course for the next run.
			runErr = ctx.Err()
			break
		}
		switch outcome {
		case OutcomeNoSections:
			summary.NoSections++
		case OutcomeShortCircuit:
			summary.ShortCircuited++
		case OutcomeExtracted:
			summary.WithSchedules++
		case OutcomeEmpty:
			summary.WithoutSchedules++
		case OutcomeFailed:
			summary.Failed++
			summary.WithoutSchedules++
		}
		d.metrics.IncCourse(outcome)

		if _, err := d.sink.Rewrite(entry.File, course); err != nil {
			log.Error("failed to persist course", "course_code", course.Code, "error", err)
			summary.PersistErrors++
			continue
		}

		if processed.Add(course.Code) {
			pending++
		}
		if pending >= d.opts.FlushEvery {
			if err := flush(); err != nil {
				return summary, err
			}
			log.Info("progress",
				"processed", len(processed),
				"no_sections", summary.NoSections,
				"with_schedules", summary.WithSchedules+summary.ShortCircuited,
				"without_schedules", summary.WithoutSchedules)
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}
	summary.Duration = time.Since(start)
	log.Info("extraction finished", "summary", summary)
	return summary, runErr
}

// process annotates course in place and returns its outcome label.
func (d *Driver) process(ctx context.Context, log *slog.Logger, course *catalog.Course) string {
	if !d.opts.Force {
		if cached, ok := course.CachedSchedules(); ok {
			course.Schedules = cached
			log.Debug("reusing cached schedules", "course_code", course.Code, "schedules", len(cached))
			return OutcomeShortCircuit
		}
	}

	if !course.HasSections() {
		if course.Schedules == nil {
			course.ClearSchedules()
		}
		log.Debug("no sections to process", "course_code", course.Code, "course_name", course.Name)
		return OutcomeNoSections
	}

	log.Info("processing course", "course_code", course.Code, "course_name", course.Name)
	result, err := d.extractor.Extract(ctx, course.Sections)
	if err != nil {
		course.ClearSchedules()
		level := slog.LevelWarn
		if errors.Is(err, extractor.ErrNoExtractorAvailable) {
			level = slog.LevelError
		}
		log.Log(ctx, level, "extraction failed", "course_code", course.Code, "error", err)
		return OutcomeFailed
	}

	if err := course.SetSchedules(result.Schedules); err != nil {
		course.ClearSchedules()
		log.Warn("could not record schedules", "course_code", course.Code, "error", err)
		return OutcomeFailed
	}
	log.Debug("extracted schedules",
		"course_code", course.Code,
		"provider", result.Provider,
		"schedules", len(result.Schedules),
		"attempts", result.Attempts)
	if len(result.Schedules) == 0 {
		return OutcomeEmpty
	}
	return OutcomeExtracted
}
