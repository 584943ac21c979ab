// Package anthropic provides an Anthropic-based schedule extractor.
package anthropic

import (
	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/llm"
)

// Extractor performs extraction using Anthropic's API.
type Extractor struct {
	*extractor.LLMExtractor
	available bool
}

// New creates a new Anthropic extractor.
// API key is read from cfg.APIKey or ANTHROPIC_API_KEY.
func New(cfg *extractor.LLMConfig) (*Extractor, error) {
	if cfg == nil {
		c := extractor.DefaultLLMConfig()
		cfg = &c
	}
	resolved := *cfg
	if resolved.APIKey == "" {
		resolved.APIKey = llm.APIKeyFromEnv("anthropic")
	}
	if resolved.APIKey == "" {
		return &Extractor{LLMExtractor: extractor.NewLLMExtractorFromConfig("anthropic", nil, resolved)}, nil
	}

	provider, err := llm.NewAnthropicProvider(resolved.ProviderConfig())
	if err != nil {
		return nil, err
	}

	return &Extractor{
		LLMExtractor: extractor.NewLLMExtractorFromConfig("anthropic", provider, resolved),
		available:    true,
	}, nil
}

// Available returns true if the Anthropic API key is configured.
func (e *Extractor) Available() bool {
	return e.available
}
