// Package cerebras provides the primary schedule extractor, backed by
// Cerebras inference.
package cerebras

import (
	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/llm"
)

// Extractor performs extraction using the Cerebras API.
type Extractor struct {
	*extractor.LLMExtractor
	available bool
}

// New creates a new Cerebras extractor.
// API key is read from cfg.APIKey or CEREBRAS_API_KEY.
func New(cfg *extractor.LLMConfig) (*Extractor, error) {
	if cfg == nil {
		c := extractor.DefaultLLMConfig()
		cfg = &c
	}
	resolved := *cfg
	if resolved.APIKey == "" {
		resolved.APIKey = llm.APIKeyFromEnv("cerebras")
	}
	if resolved.APIKey == "" {
		return &Extractor{LLMExtractor: extractor.NewLLMExtractorFromConfig("cerebras", nil, resolved)}, nil
	}

	provider, err := llm.NewCerebrasProvider(resolved.ProviderConfig())
	if err != nil {
		return nil, err
	}

	return &Extractor{
		LLMExtractor: extractor.NewLLMExtractorFromConfig("cerebras", provider, resolved),
		available:    true,
	}, nil
}

// Available returns true if the Cerebras API key is configured.
func (e *Extractor) Available() bool {
	return e.available
}
