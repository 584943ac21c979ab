package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/coursesched/internal/logger"
)

// FallbackHook is called when an extractor fails and the chain moves on.
type FallbackHook func(failed string, err error)

// FallbackExtractor tries each extractor in order until one succeeds.
type FallbackExtractor struct {
	extractors []Extractor
	hook       FallbackHook
}

// NewFallback creates a fallback chain from the given extractors.
// Extractors are tried in order. Only available extractors are used.
func NewFallback(extractors ...Extractor) *FallbackExtractor {
	return &FallbackExtractor{extractors: extractors}
}

// OnFallback registers a callback for each hand-over to the next extractor.
func (f *FallbackExtractor) OnFallback(hook FallbackHook) *FallbackExtractor {
	f.hook = hook
	return f
}

// Extract tries each extractor in order until one succeeds.
func (f *FallbackExtractor) Extract(ctx context.Context, sections []string) (*Result, error) {
	var lastErr error
	var tried []string

	for _, ext := range f.extractors {
		if !ext.Available() {
			continue
		}
		if lastErr != nil {
			if f.hook != nil {
				f.hook(tried[len(tried)-1], lastErr)
			}
			logger.Info("falling back to next extractor", "failed", tried[len(tried)-1], "next", ext.Name())
		}

		tried = append(tried, ext.Name())
		result, err := ext.Extract(ctx, sections)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
	}

	if len(tried) == 0 {
		return nil, ErrNoExtractorAvailable
	}

	return nil, fmt.Errorf("all extractors failed (tried: %s): %w", strings.Join(tried, ", "), lastErr)
}

// Name returns the fallback chain name.
func (f *FallbackExtractor) Name() string {
	names := make([]string, 0, len(f.extractors))
	for _, ext := range f.extractors {
		names = append(names, ext.Name())
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

// Available returns true if at least one extractor is available.
func (f *FallbackExtractor) Available() bool {
	return f.First() != nil
}

// First returns the first available extractor, or nil if none available.
func (f *FallbackExtractor) First() Extractor {
	for _, ext := range f.extractors {
		if ext.Available() {
			return ext
		}
	}
	return nil
}
