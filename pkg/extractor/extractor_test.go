package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/llm"
)

// scriptedProvider returns queued responses in order.
type scriptedProvider struct {
	replies  []reply
	requests []llm.Request
}

type reply struct {
	content string
	err     error
}

func (p *scriptedProvider) Execute(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.requests = append(p.requests, req)
	if len(p.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Content: r.content, Model: "fake-model", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (p *scriptedProvider) Name() string  { return "fake" }
func (p *scriptedProvider) Model() string { return "fake-model" }

// countingExtractor fails a fixed number of times before succeeding.
type countingExtractor struct {
	name      string
	failures  int
	err       error
	calls     int
	available bool
}

func (c *countingExtractor) Extract(_ context.Context, _ []string) (*Result, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.err
	}
	return &Result{Schedules: []catalog.ScheduleEntry{{StartDate: "2024-01-20", EndDate: "2024-04-15", DaysOfWeek: "Tuesday"}}, Provider: c.name}, nil
}

func (c *countingExtractor) Name() string    { return c.name }
func (c *countingExtractor) Available() bool { return c.available }

func transient(provider string) error {
	return &ExtractionError{Provider: provider, Reason: ReasonTransport, Err: errors.New("timeout")}
}

const validResponse = `{"schedules":[{"start_date":"2024-01-20","end_date":"2024-04-15","day_or_days_of_week":"Tuesday, Thursday","start_time":"6:00 PM","end_time":"9:00 PM"}]}`

func TestLLMExtractor_Success(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{content: "```json\n" + validResponse + "\n```"}}}
	var events []llm.LLMCallEvent
	e := NewLLMExtractor("fake", p, WithObserver(llm.ObserverFunc(func(_ context.Context, ev llm.LLMCallEvent) {
		events = append(events, ev)
	})))

	res, err := e.Extract(context.Background(), []string{"Tuesdays and Thursdays, 6:00 PM - 9:00 PM, Jan 20 2024 to Apr 15 2024"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Schedules) != 1 {
		t.Fatalf("got %d schedules, want 1", len(res.Schedules))
	}
	got := res.Schedules[0]
	if got.StartDate != "2024-01-20" || got.EndDate != "2024-04-15" || got.StartTime != "6:00 PM" {
		t.Errorf("schedule = %+v", got)
	}
	if res.Usage.InputTokens != 10 || res.Provider != "fake" || res.Attempts != 1 {
		t.Errorf("result metadata = %+v", res)
	}

	req := p.requests[0]
	if req.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", req.Temperature)
	}
	if req.JSONSchema == nil {
		t.Error("request should carry the schedule JSON schema")
	}
	if !strings.Contains(req.Messages[0].Content, "ONLY return the JSON object") ||
		!strings.Contains(req.Messages[0].Content, "Jan 20 2024 to Apr 15 2024") {
		t.Errorf("prompt missing instructions or input:\n%s", req.Messages[0].Content)
	}
	if len(events) != 1 || !events[0].Succeeded() || events[0].Attempt != 1 {
		t.Errorf("observer events = %+v", events)
	}
}

func TestLLMExtractor_EmptySectionsSkipBackend(t *testing.T) {
	p := &scriptedProvider{}
	e := NewLLMExtractor("fake", p)

	for _, sections := range [][]string{nil, {}, {"  ", "\n"}} {
		res, err := e.Extract(context.Background(), sections)
		if err != nil {
			t.Fatalf("Extract(%q) error = %v", sections, err)
		}
		if res.Schedules == nil || len(res.Schedules) != 0 {
			t.Errorf("Extract(%q) schedules = %v, want empty non-nil", sections, res.Schedules)
		}
	}
	if len(p.requests) != 0 {
		t.Errorf("backend called %d times, want 0", len(p.requests))
	}
}

func TestLLMExtractor_Failures(t *testing.T) {
	tests := []struct {
		name   string
		reply  reply
		reason Reason
	}{
		{name: "prose", reply: reply{content: "Here are the schedules you asked for"}, reason: ReasonMalformed},
		{name: "unknown field", reply: reply{content: `{"schedules":[],"notes":"x"}`}, reason: ReasonMalformed},
		{name: "missing schedules", reply: reply{content: `{}`}, reason: ReasonSchema},
		{name: "missing start date", reply: reply{content: `{"schedules":[{"end_date":"2024-04-15","day_or_days_of_week":"Monday"}]}`}, reason: ReasonSchema},
		{name: "transport", reply: reply{err: errors.New("connection reset")}, reason: ReasonTransport},
		{name: "rejected key", reply: reply{err: &llm.StatusError{Provider: "fake", StatusCode: 401}}, reason: ReasonUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewLLMExtractor("fake", &scriptedProvider{replies: []reply{tt.reply}})
			_, err := e.Extract(context.Background(), []string{"Mondays 9am"})
			var ee *ExtractionError
			if !errors.As(err, &ee) {
				t.Fatalf("Extract() error = %v, want ExtractionError", err)
			}
			if ee.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", ee.Reason, tt.reason)
			}
		})
	}
}

func TestSanitizeSections(t *testing.T) {
	got := SanitizeSections([]string{
		"<p>Tuesdays <b>6:00 PM</b></p>",
		"  Jan 20\n\n 2024  ",
		"   ",
	})
	want := []string{"Tuesdays 6:00 PM", "Jan 20 2024"}
	if len(got) != len(want) {
		t.Fatalf("SanitizeSections() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("section %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```  ":   `{"a":1}`,
		`  {"a":1}  `:             `{"a":1}`,
	}
	for in, want := range tests {
		if got := StripMarkdownCodeBlock(in); got != want {
			t.Errorf("StripMarkdownCodeBlock(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateContent(t *testing.T) {
	if got := TruncateContent("abcdef", 0); got != "abcdef" {
		t.Errorf("unlimited = %q", got)
	}
	if got := TruncateContent("abcdef", 3); !strings.HasPrefix(got, "abc\n") {
		t.Errorf("truncated = %q", got)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		n    int
		want time.Duration
	}{
		{n: 1, want: 4 * time.Second},
		{n: 2, want: 8 * time.Second},
		{n: 3, want: 16 * time.Second},
		{n: 4, want: 32 * time.Second},
		{n: 5, want: 60 * time.Second},
		{n: 10, want: 60 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.n); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func recordSleeps(sleeps *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
}

func TestRetrying_SucceedsOnThirdAttempt(t *testing.T) {
	inner := &countingExtractor{name: "cerebras", failures: 2, err: transient("cerebras"), available: true}
	var sleeps []time.Duration
	var hooks int
	r := NewRetrying(inner, DefaultRetryPolicy(),
		WithSleep(recordSleeps(&sleeps)),
		WithRetryHook(func(string, int, time.Duration, error) { hooks++ }))

	res, err := r.Extract(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Attempts != 3 || inner.calls != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3", res.Attempts, inner.calls)
	}
	if len(sleeps) != 2 || sleeps[0] != 4*time.Second || sleeps[1] != 8*time.Second {
		t.Errorf("sleeps = %v, want [4s 8s]", sleeps)
	}
	if hooks != 2 {
		t.Errorf("retry hook called %d times, want 2", hooks)
	}
}

func TestRetrying_Exhausted(t *testing.T) {
	cause := transient("cerebras")
	inner := &countingExtractor{name: "cerebras", failures: 10, err: cause, available: true}
	var sleeps []time.Duration
	r := NewRetrying(inner, DefaultRetryPolicy(), WithSleep(recordSleeps(&sleeps)))

	_, err := r.Extract(context.Background(), []string{"x"})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("error = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, cause) {
		t.Error("exhausted error should wrap the last failure")
	}
	if inner.calls != 3 || len(sleeps) != 2 {
		t.Errorf("calls = %d, sleeps = %d, want 3 and 2", inner.calls, len(sleeps))
	}
}

func TestRetrying_DoesNotRetryUnavailable(t *testing.T) {
	inner := &countingExtractor{
		name: "cohere", failures: 10, available: true,
		err: &ExtractionError{Provider: "cohere", Reason: ReasonUnavailable, Err: llm.ErrMissingAPIKey},
	}
	var sleeps []time.Duration
	r := NewRetrying(inner, DefaultRetryPolicy(), WithSleep(recordSleeps(&sleeps)))

	if _, err := r.Extract(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 || len(sleeps) != 0 {
		t.Errorf("calls = %d, sleeps = %d, want 1 and 0", inner.calls, len(sleeps))
	}
}

func TestRetrying_CancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &countingExtractor{name: "cerebras", failures: 10, err: transient("cerebras"), available: true}
	r := NewRetrying(inner, DefaultRetryPolicy(), WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := r.Extract(ctx, []string{"x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestFallback_PrimaryExhaustedRunsFallbackOnce(t *testing.T) {
	primary := &countingExtractor{name: "cerebras", failures: 10, err: transient("cerebras"), available: true}
	secondary := &countingExtractor{name: "cohere", failures: 0, available: true}
	var sleeps []time.Duration
	noSleep := WithSleep(recordSleeps(&sleeps))

	var fellBack []string
	chain := NewFallback(
		NewRetrying(primary, DefaultRetryPolicy(), noSleep),
		NewRetrying(secondary, DefaultRetryPolicy(), noSleep),
	).OnFallback(func(failed string, _ error) { fellBack = append(fellBack, failed) })

	res, err := chain.Extract(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Provider != "cohere" {
		t.Errorf("provider = %s, want cohere", res.Provider)
	}
	if primary.calls != 3 || secondary.calls != 1 {
		t.Errorf("calls primary=%d secondary=%d, want 3 and 1", primary.calls, secondary.calls)
	}
	if len(fellBack) != 1 || fellBack[0] != "cerebras" {
		t.Errorf("fallback hook = %v", fellBack)
	}
}

func TestFallback_AllFail(t *testing.T) {
	noSleep := WithSleep(func(context.Context, time.Duration) error { return nil })
	primary := &countingExtractor{name: "cerebras", failures: 10, err: transient("cerebras"), available: true}
	secondary := &countingExtractor{name: "cohere", failures: 10, err: transient("cohere"), available: true}
	chain := NewFallback(
		NewRetrying(primary, DefaultRetryPolicy(), noSleep),
		NewRetrying(secondary, DefaultRetryPolicy(), noSleep),
	)

	_, err := chain.Extract(context.Background(), []string{"x"})
	if err == nil || !strings.Contains(err.Error(), "tried: cerebras, cohere") {
		t.Fatalf("error = %v", err)
	}
	if primary.calls != 3 || secondary.calls != 3 {
		t.Errorf("calls primary=%d secondary=%d, want 3 each", primary.calls, secondary.calls)
	}
}

func TestFallback_SkipsUnavailable(t *testing.T) {
	off := &countingExtractor{name: "cerebras", available: false}
	on := &countingExtractor{name: "cohere", available: true}
	chain := NewFallback(off, on)

	if chain.First() != on {
		t.Error("First() should skip unavailable extractors")
	}
	if _, err := chain.Extract(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if off.calls != 0 {
		t.Error("unavailable extractor should not be called")
	}
	if chain.Name() != "fallback(cerebras->cohere)" {
		t.Errorf("Name() = %q", chain.Name())
	}

	_, err := NewFallback(off).Extract(context.Background(), []string{"x"})
	if !errors.Is(err, ErrNoExtractorAvailable) {
		t.Errorf("error = %v, want ErrNoExtractorAvailable", err)
	}
}
