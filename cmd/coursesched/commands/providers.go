package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/coursesched/internal/config"
	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/metrics"
	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/extractor/anthropic"
	"github.com/jmylchreest/coursesched/pkg/extractor/cerebras"
	"github.com/jmylchreest/coursesched/pkg/extractor/cohere"
	"github.com/jmylchreest/coursesched/pkg/extractor/gemini"
	"github.com/jmylchreest/coursesched/pkg/extractor/generic"
)

// buildExtractorChain creates the fallback chain in c.FallbackOrder. Each
// provider is wrapped in its own retry loop so a provider is abandoned only
// after its attempts are used up. Providers without an API key stay in the
// chain but are skipped at extraction time. The returned closer releases
// provider clients.
func buildExtractorChain(c *config.Config, m *metrics.Metrics, maxContentSize int) (*extractor.FallbackExtractor, io.Closer, error) {
	policy := c.RetryPolicy()
	var (
		chain []extractor.Extractor
		open  multiCloser
		seen  = make(map[string]bool)
	)

	for _, name := range c.FallbackOrder {
		if seen[name] {
			continue
		}
		seen[name] = true

		llmCfg, err := c.LLMConfig(name)
		if err != nil {
			return nil, nil, err
		}
		if maxContentSize >= 0 {
			llmCfg.MaxContentSize = maxContentSize
		}
		llmCfg.Observer = m.Observer()

		ext, err := newProviderExtractor(name, &llmCfg)
		if err != nil {
			_ = open.Close()
			return nil, nil, fmt.Errorf("create %s extractor: %w", name, err)
		}
		if cl, ok := ext.(io.Closer); ok {
			open = append(open, cl)
		}
		if !ext.Available() {
			logger.Warn("provider has no API key, it will be skipped", "provider", name)
		}

		chain = append(chain, extractor.NewRetrying(ext, policy,
			extractor.WithRetryHook(func(provider string, _ int, _ time.Duration, _ error) {
				m.IncRetry(provider)
			})))
		logger.Debug("added extractor to chain", "provider", name, "available", ext.Available())
	}

	fb := extractor.NewFallback(chain...).OnFallback(func(string, error) {
		m.IncFallback()
	})
	if !fb.Available() {
		logger.Error("no extraction provider is available; every course will get an empty schedule list",
			"fallback_order", c.FallbackOrder)
	}
	return fb, open, nil
}

func newProviderExtractor(name string, cfg *extractor.LLMConfig) (extractor.Extractor, error) {
	switch name {
	case "cerebras":
		return cerebras.New(cfg)
	case "cohere":
		return cohere.New(cfg)
	case "anthropic":
		return anthropic.New(cfg)
	case "gemini":
		return gemini.New(cfg)
	default:
		return generic.New(name, cfg)
	}
}

type multiCloser []io.Closer

func (cs multiCloser) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
