// Package generic provides a registry-driven LLM extractor that works with
// any provider registered in pkg/llm.
package generic

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/llm"
)

// Extractor performs extraction using any registered LLM provider.
type Extractor struct {
	*extractor.LLMExtractor
	available bool
}

// New creates an extractor for the named provider. The API key is read from
// cfg.APIKey or the provider's environment variable. Without a key the
// extractor is returned unavailable rather than as an error.
func New(providerName string, cfg *extractor.LLMConfig) (*Extractor, error) {
	if cfg == nil {
		c := extractor.DefaultLLMConfig()
		cfg = &c
	}
	if !llm.IsRegistered(providerName) {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)",
			providerName, strings.Join(llm.AvailableProviders(), ", "))
	}

	resolved := *cfg
	if resolved.APIKey == "" {
		resolved.APIKey = llm.APIKeyFromEnv(providerName)
	}
	if resolved.APIKey == "" {
		return &Extractor{
			LLMExtractor: extractor.NewLLMExtractorFromConfig(providerName, nil, resolved),
			available:    false,
		}, nil
	}

	provider, err := llm.NewProvider(providerName, resolved.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", providerName, err)
	}

	return &Extractor{
		LLMExtractor: extractor.NewLLMExtractorFromConfig(providerName, provider, resolved),
		available:    true,
	}, nil
}

// Available returns true if the provider's API key is configured.
func (e *Extractor) Available() bool {
	return e.available
}
