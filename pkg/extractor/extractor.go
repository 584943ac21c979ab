// Package extractor turns free-text course section descriptions into
// structured schedules using language-model backends, with retry and
// provider fallback.
package extractor

import (
	"context"
	"time"

	"github.com/jmylchreest/coursesched/pkg/catalog"
)

// Extractor extracts schedules from the section texts of one course.
type Extractor interface {
	// Extract returns the schedules found in sections. A failure is an
	// error wrapping *ExtractionError.
	Extract(ctx context.Context, sections []string) (*Result, error)

	// Name returns the extractor identifier.
	Name() string

	// Available returns true if the extractor is properly configured
	// (e.g., has required API keys).
	Available() bool
}

// Result holds the extraction output.
type Result struct {
	// Schedules is never nil on success.
	Schedules []catalog.ScheduleEntry

	// Raw is the unprocessed backend response.
	Raw string

	Provider string
	Model    string
	Usage    Usage

	// Attempts counts backend calls made, including retries.
	Attempts int

	Duration time.Duration
}

// Usage tracks token consumption for LLM-based extractors.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates another usage record.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

func emptyResult(provider string) *Result {
	return &Result{Schedules: []catalog.ScheduleEntry{}, Provider: provider}
}
