// Package gemini provides a Google Gemini schedule extractor.
package gemini

import (
	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/llm"
)

// Extractor performs extraction using the Gemini API.
type Extractor struct {
	*extractor.LLMExtractor
	provider  *llm.GeminiProvider
	available bool
}

// New creates a new Gemini extractor.
// API key is read from cfg.APIKey or GEMINI_API_KEY.
func New(cfg *extractor.LLMConfig) (*Extractor, error) {
	if cfg == nil {
		c := extractor.DefaultLLMConfig()
		cfg = &c
	}
	resolved := *cfg
	if resolved.APIKey == "" {
		resolved.APIKey = llm.APIKeyFromEnv("gemini")
	}
	if resolved.APIKey == "" {
		return &Extractor{LLMExtractor: extractor.NewLLMExtractorFromConfig("gemini", nil, resolved)}, nil
	}

	provider, err := llm.NewGeminiProvider(resolved.ProviderConfig())
	if err != nil {
		return nil, err
	}

	return &Extractor{
		LLMExtractor: extractor.NewLLMExtractorFromConfig("gemini", provider, resolved),
		provider:     provider,
		available:    true,
	}, nil
}

// Available returns true if the Gemini API key is configured.
func (e *Extractor) Available() bool {
	return e.available
}

// Close releases the Gemini client.
func (e *Extractor) Close() error {
	if e.provider == nil {
		return nil
	}
	return e.provider.Close()
}
