package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmylchreest/coursesched/internal/checkpoint"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/llm"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

// stubExtractor returns a fixed schedule list and counts calls.
type stubExtractor struct {
	calls     int
	schedules []catalog.ScheduleEntry
	err       error
}

func (s *stubExtractor) Extract(_ context.Context, _ []string) (*extractor.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &extractor.Result{Schedules: s.schedules, Provider: "stub"}, nil
}

func (s *stubExtractor) Name() string    { return "stub" }
func (s *stubExtractor) Available() bool { return true }

// fixedProvider answers every request with the same content.
type fixedProvider struct {
	content string
	prompts []string
}

func (p *fixedProvider) Execute(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.prompts = append(p.prompts, req.Messages[len(req.Messages)-1].Content)
	return &llm.Response{Content: p.content, Model: "fixed"}, nil
}

func (p *fixedProvider) Name() string  { return "fixed" }
func (p *fixedProvider) Model() string { return "fixed" }

func seedCorpus(t *testing.T, courses ...*catalog.Course) *catalog.Corpus {
	t.Helper()
	corpus := catalog.NewCorpus(filepath.Join(t.TempDir(), "course_data"))
	for _, c := range courses {
		if _, err := corpus.Write(c); err != nil {
			t.Fatalf("seed %s: %v", c.Code, err)
		}
	}
	return corpus
}

func sampleCourses(n int) []*catalog.Course {
	out := make([]*catalog.Course, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &catalog.Course{
			Code:     fmt.Sprintf("WINE %d000", i+1),
			Name:     fmt.Sprintf("Wine Tasting %d", i+1),
			Sections: []string{"Tuesdays, 6:00 PM - 9:00 PM, Jan 20 2024 to Apr 15 2024"},
		})
	}
	return out
}

func oneSchedule() []catalog.ScheduleEntry {
	return []catalog.ScheduleEntry{{StartDate: "2024-01-20", EndDate: "2024-04-15", DaysOfWeek: "Tuesday", StartTime: "6:00 PM", EndTime: "9:00 PM"}}
}

func TestDriver_ResumedRunIsIdempotent(t *testing.T) {
	corpus := seedCorpus(t, sampleCourses(3)...)
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))
	ext := &stubExtractor{schedules: oneSchedule()}

	first, err := NewDriver(corpus, ext, store).Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.WithSchedules != 3 || ext.calls != 3 {
		t.Fatalf("first run: with_schedules=%d calls=%d, want 3/3", first.WithSchedules, ext.calls)
	}

	ext.calls = 0
	second, err := NewDriver(corpus, ext, store).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if ext.calls != 0 {
		t.Errorf("second run made %d provider calls, want 0", ext.calls)
	}
	if second.Skipped != 3 || second.Processed() != 0 {
		t.Errorf("second run summary = %+v", second)
	}

	set, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 3 {
		t.Errorf("checkpoint holds %d codes, want 3", len(set))
	}
}

func TestDriver_FiltersAndShortCircuits(t *testing.T) {
	cached := &catalog.Course{Code: "HOSF 9489", Name: "Cached", Sections: []string{"anything"}}
	if err := cached.SetSchedules(oneSchedule()); err != nil {
		t.Fatal(err)
	}
	cached.Schedules = nil

	corpus := seedCorpus(t,
		cached,
		&catalog.Course{Code: "BUSN 1000", Name: "Business Program"},
		&catalog.Course{Code: "ACCT 1000", Name: "No Sections"},
	)
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))
	ext := &stubExtractor{schedules: oneSchedule()}

	summary, err := NewDriver(corpus, ext, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ext.calls != 0 {
		t.Errorf("provider called %d times, want 0", ext.calls)
	}
	if summary.Filtered != 1 || summary.ShortCircuited != 1 || summary.NoSections != 1 {
		t.Errorf("summary = %+v", summary)
	}

	got, err := corpus.Read(catalog.FileName(cached))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Schedules) != 1 {
		t.Errorf("cached course schedules = %v, want adopted cache", got.Schedules)
	}

	set, _ := store.Load()
	if set.Has("BUSN 1000") {
		t.Error("program should not be checkpointed")
	}
	if !set.Has("ACCT 1000") || !set.Has("HOSF 9489") {
		t.Errorf("checkpoint = %v", set.Sorted())
	}
}

func TestDriver_FailureAttachesEmptySchedules(t *testing.T) {
	course := sampleCourses(1)[0]
	course.Schedules = oneSchedule()
	corpus := seedCorpus(t, course)
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))
	ext := &stubExtractor{err: errors.New("all extractors failed")}

	summary, err := NewDriver(corpus, ext, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Failed != 1 || summary.WithoutSchedules != 1 {
		t.Errorf("summary = %+v", summary)
	}
	got, _ := corpus.Read(catalog.FileName(course))
	if got.Schedules == nil || len(got.Schedules) != 0 {
		t.Errorf("schedules = %#v, want empty list", got.Schedules)
	}
}

func TestDriver_ForceIgnoresCheckpointAndCache(t *testing.T) {
	course := sampleCourses(1)[0]
	if err := course.SetSchedules(oneSchedule()); err != nil {
		t.Fatal(err)
	}
	corpus := seedCorpus(t, course)
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))
	if err := store.Save(checkpoint.NewSet(course.Code, "ACCT 1000")); err != nil {
		t.Fatal(err)
	}
	ext := &stubExtractor{schedules: oneSchedule()}

	opts := DefaultOptions()
	opts.Force = true
	opts.CodePrefix = course.Code
	if _, err := NewDriver(corpus, ext, store, WithOptions(opts)).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ext.calls != 1 {
		t.Errorf("calls = %d, want 1", ext.calls)
	}
	set, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !set.Has("ACCT 1000") || !set.Has(course.Code) {
		t.Errorf("checkpoint after forced run = %v, want previous codes kept", set.Sorted())
	}
}

func TestDriver_RewritesUnderCanonicalName(t *testing.T) {
	corpus := catalog.NewCorpus(filepath.Join(t.TempDir(), "course_data"))
	if err := os.MkdirAll(corpus.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `{"course_code":"WINE 2000","course_name":"Wine","course_sections":["Tuesdays, 6:00 PM - 9:00 PM"]}`
	if err := os.WriteFile(filepath.Join(corpus.Dir(), "wine-2000.json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))

	if _, err := NewDriver(corpus, &stubExtractor{schedules: oneSchedule()}, store).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	files, err := corpus.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != "WINE 2000 - Wine.json" {
		t.Errorf("corpus files = %v, want the canonical file only", files)
	}
}

func TestDriver_FlushesEveryN(t *testing.T) {
	corpus := seedCorpus(t, sampleCourses(5)...)
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))

	var saves []int
	ext := &stubExtractor{schedules: oneSchedule()}
	opts := DefaultOptions()
	opts.FlushEvery = 2
	d := NewDriver(corpus, ext, store, WithOptions(opts), WithSink(sinkFunc(func(file string, c *catalog.Course) (string, error) {
		set, _ := store.Load()
		saves = append(saves, len(set))
		return corpus.Rewrite(file, c)
	})))

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Checkpoint size observed before each persist: flushed after 2 and 4.
	want := []int{0, 0, 2, 2, 4}
	for i := range want {
		if saves[i] != want[i] {
			t.Fatalf("checkpoint sizes = %v, want %v", saves, want)
		}
	}
	set, _ := store.Load()
	if len(set) != 5 {
		t.Errorf("final checkpoint = %d codes, want 5", len(set))
	}
}

func TestDriver_CancelledRunFlushes(t *testing.T) {
	corpus := seedCorpus(t, sampleCourses(3)...)
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))

	ctx, cancel := context.WithCancel(context.Background())
	ext := &stubExtractor{schedules: oneSchedule()}
	d := NewDriver(corpus, ext, store, WithSink(sinkFunc(func(file string, c *catalog.Course) (string, error) {
		cancel()
		return corpus.Rewrite(file, c)
	})))

	summary, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if summary.WithSchedules != 1 {
		t.Errorf("processed %d courses before stopping, want 1", summary.WithSchedules)
	}
	set, _ := store.Load()
	if len(set) != 1 {
		t.Errorf("checkpoint = %v, want the one finished course", set.Sorted())
	}
}

func TestDriver_EndToEndSectionExample(t *testing.T) {
	section := "Tuesdays and Thursdays, 6:00 PM - 9:00 PM, Jan 20 2024 to Apr 15 2024"
	course := &catalog.Course{Code: "HOSF 9489", Name: "Evening Pastry", Sections: []string{section}}
	corpus := seedCorpus(t, course)
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "processed_courses.json"))

	provider := &fixedProvider{content: "```json\n" +
		`{"schedules":[{"start_date":"2024-01-20","end_date":"2024-04-15","day_or_days_of_week":"Tuesday, Thursday","start_time":"6:00 PM","end_time":"9:00 PM"}]}` +
		"\n```"}
	ext := extractor.NewLLMExtractor("fixed", provider)

	summary, err := NewDriver(corpus, ext, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.WithSchedules != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(provider.prompts) != 1 || !strings.Contains(provider.prompts[0], section) {
		t.Fatalf("prompt did not carry the section text: %v", provider.prompts)
	}

	got, err := corpus.Read(catalog.FileName(course))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Schedules) != 1 {
		t.Fatalf("schedules = %v, want 1 entry", got.Schedules)
	}
	s := got.Schedules[0]
	if timeparse.NormalizeDate(s.StartDate) != "2024-01-20" || timeparse.NormalizeDate(s.EndDate) != "2024-04-15" {
		t.Errorf("dates = %s..%s", s.StartDate, s.EndDate)
	}
	if !strings.Contains(s.DaysOfWeek, "Tuesday") || !strings.Contains(s.DaysOfWeek, "Thursday") {
		t.Errorf("days = %q", s.DaysOfWeek)
	}
	if timeparse.NormalizeTime(s.StartTime) != "18:00:00" || timeparse.NormalizeTime(s.EndTime) != "21:00:00" {
		t.Errorf("times = %s-%s", s.StartTime, s.EndTime)
	}
	if _, ok := got.CachedSchedules(); !ok {
		t.Error("cleaned response was not recorded")
	}
}

type sinkFunc func(string, *catalog.Course) (string, error)

func (f sinkFunc) Rewrite(file string, c *catalog.Course) (string, error) { return f(file, c) }
