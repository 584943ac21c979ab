package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/llm"
	"github.com/jmylchreest/coursesched/pkg/schema"
)

// ScheduleSchema is the contract every backend response must satisfy.
var ScheduleSchema = schema.MustNewSchema[catalog.ScheduleList](
	schema.WithName("schedule_list"),
	schema.WithDescription("Schedules found in a course's section descriptions"),
)

// LLMExtractor makes one backend call per Extract. Provider-specific
// extractors embed it; retries are layered on top with Retrying.
type LLMExtractor struct {
	provider llm.Provider
	config   LLMConfig
	name     string
}

// NewLLMExtractor creates an extractor over provider with default config
// adjusted by opts.
func NewLLMExtractor(name string, provider llm.Provider, opts ...ExtractorOption) *LLMExtractor {
	config := DefaultLLMConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &LLMExtractor{provider: provider, config: config, name: name}
}

// NewLLMExtractorFromConfig creates an extractor from a full config. Zero
// numeric fields fall back to defaults.
func NewLLMExtractorFromConfig(name string, provider llm.Provider, cfg LLMConfig) *LLMExtractor {
	config := DefaultLLMConfig()
	if cfg.Temperature > 0 {
		config.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		config.MaxTokens = cfg.MaxTokens
	}
	if cfg.MaxContentSize > 0 {
		config.MaxContentSize = cfg.MaxContentSize
	}
	config.StrictMode = cfg.StrictMode
	config.Observer = cfg.Observer
	return &LLMExtractor{provider: provider, config: config, name: name}
}

// Extract sends the sanitized sections to the backend and parses the
// schedule list it returns.
func (e *LLMExtractor) Extract(ctx context.Context, sections []string) (*Result, error) {
	clean := SanitizeSections(sections)
	if len(clean) == 0 {
		logger.Debug("no section text, skipping backend call", "extractor", e.name)
		return emptyResult(e.name), nil
	}
	if e.provider == nil {
		return nil, &ExtractionError{Provider: e.name, Reason: ReasonUnavailable, Err: errors.New("no provider configured")}
	}

	prompt := BuildPrompt(clean, e.config.MaxContentSize)
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	logger.Debug("extractor calling LLM",
		"provider", e.provider.Name(),
		"model", e.provider.Model(),
		"sections", len(clean),
		"prompt_size", len(prompt),
		"temperature", e.config.Temperature)

	startedAt := time.Now()
	resp, err := e.provider.Execute(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		JSONSchema:  ScheduleSchema.ToJSONSchema(),
		SchemaName:  ScheduleSchema.Name,
		StrictMode:  e.config.StrictMode,
	})
	duration := time.Since(startedAt)

	e.notify(ctx, resp, err, startedAt, duration, len(prompt))

	if err != nil {
		logger.Debug("extractor LLM completion failed", "provider", e.name, "error", err)
		return nil, classifyProviderError(e.name, err)
	}

	result := &Result{
		Raw:      resp.Content,
		Provider: e.name,
		Model:    resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Attempts: 1,
		Duration: duration,
	}

	list, err := ScheduleSchema.Decode([]byte(StripMarkdownCodeBlock(resp.Content)))
	if err != nil {
		logger.Debug("extractor failed to parse response", "provider", e.name, "error", err)
		return nil, &ExtractionError{
			Provider: e.name,
			Reason:   ReasonMalformed,
			Err:      fmt.Errorf("%w (response: %s)", err, truncateForError(resp.Content)),
		}
	}
	if errs := ScheduleSchema.Validate(list); len(errs) > 0 {
		logger.Debug("extractor validation failed", "provider", e.name, "errors", len(errs))
		return nil, &ExtractionError{Provider: e.name, Reason: ReasonSchema, Err: schema.ValidationErrors(errs)}
	}

	result.Schedules = list.Schedules
	if result.Schedules == nil {
		result.Schedules = []catalog.ScheduleEntry{}
	}
	return result, nil
}

func (e *LLMExtractor) notify(ctx context.Context, resp *llm.Response, err error, startedAt time.Time, d time.Duration, inputSize int) {
	if e.config.Observer == nil {
		return
	}
	event := llm.LLMCallEvent{
		Provider:  e.name,
		Model:     e.provider.Model(),
		Response:  resp,
		Error:     err,
		Duration:  d,
		Attempt:   AttemptFromContext(ctx),
		StartedAt: startedAt,
		InputSize: inputSize,
	}
	if resp != nil && resp.Model != "" {
		event.Model = resp.Model
	}
	e.config.Observer.OnLLMCall(ctx, event)
}

// Name returns the extractor name.
func (e *LLMExtractor) Name() string {
	return e.name
}

// Available reports whether a provider is configured.
func (e *LLMExtractor) Available() bool {
	return e.provider != nil
}

// Provider returns the underlying provider.
func (e *LLMExtractor) Provider() llm.Provider {
	return e.provider
}

type attemptKey struct{}

// WithAttempt records the attempt number for observers.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// AttemptFromContext returns the attempt number, 1 if none was recorded.
func AttemptFromContext(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok {
		return n
	}
	return 1
}

func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
