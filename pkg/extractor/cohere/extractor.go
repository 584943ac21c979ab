// Package cohere provides the fallback schedule extractor, backed by
// Cohere chat.
package cohere

import (
	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/llm"
)

// Extractor performs extraction using the Cohere API.
type Extractor struct {
	*extractor.LLMExtractor
	available bool
}

// New creates a new Cohere extractor.
// API key is read from cfg.APIKey or COHERE_API_KEY.
func New(cfg *extractor.LLMConfig) (*Extractor, error) {
	if cfg == nil {
		c := extractor.DefaultLLMConfig()
		cfg = &c
	}
	resolved := *cfg
	if resolved.APIKey == "" {
		resolved.APIKey = llm.APIKeyFromEnv("cohere")
	}
	if resolved.APIKey == "" {
		return &Extractor{LLMExtractor: extractor.NewLLMExtractorFromConfig("cohere", nil, resolved)}, nil
	}

	provider, err := llm.NewCohereProvider(resolved.ProviderConfig())
	if err != nil {
		return nil, err
	}

	return &Extractor{
		LLMExtractor: extractor.NewLLMExtractorFromConfig("cohere", provider, resolved),
		available:    true,
	}, nil
}

// Available returns true if the Cohere API key is configured.
func (e *Extractor) Available() bool {
	return e.available
}
