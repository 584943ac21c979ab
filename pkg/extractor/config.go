package extractor

import (
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/coursesched/pkg/llm"
)

// LLMConfig holds shared configuration for LLM-based extractors.
type LLMConfig struct {
	// Model overrides the default model for this provider.
	Model string

	// APIKey for the provider. If empty, checks environment variable.
	APIKey string

	// BaseURL for custom API endpoints.
	BaseURL string

	// Temperature for LLM responses (default: 0.1).
	Temperature float64

	// MaxTokens for LLM responses (default: 2048).
	MaxTokens int

	// MaxContentSize limits the joined section text in bytes (0 = unlimited).
	MaxContentSize int

	// StrictMode enables strict JSON schema validation where supported.
	StrictMode bool

	// Timeout bounds a single backend call.
	Timeout time.Duration

	// HTTPClient overrides the provider transport.
	HTTPClient *http.Client

	// Observer receives notifications about LLM calls.
	Observer llm.LLMObserver
}

// DefaultLLMConfig returns sensible defaults for schedule extraction.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Temperature:    0.1,
		MaxTokens:      2048,
		MaxContentSize: 32000,
		Timeout:        60 * time.Second,
	}
}

// ProviderConfig converts the extractor config into the llm package form.
func (c LLMConfig) ProviderConfig() llm.ProviderConfig {
	pc := llm.DefaultProviderConfig()
	pc.APIKey = c.APIKey
	pc.BaseURL = c.BaseURL
	pc.Model = c.Model
	pc.HTTPClient = c.HTTPClient
	if c.Timeout > 0 {
		pc.Timeout = c.Timeout
	}
	return pc
}

// ExtractorOption configures an LLMExtractor.
type ExtractorOption func(*LLMConfig)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ExtractorOption {
	return func(c *LLMConfig) { c.Temperature = t }
}

// WithMaxTokens sets the maximum output tokens.
func WithMaxTokens(n int) ExtractorOption {
	return func(c *LLMConfig) { c.MaxTokens = n }
}

// WithMaxContentSize limits the section text sent to the backend.
func WithMaxContentSize(n int) ExtractorOption {
	return func(c *LLMConfig) { c.MaxContentSize = n }
}

// WithStrictMode enables strict JSON schema validation.
func WithStrictMode(strict bool) ExtractorOption {
	return func(c *LLMConfig) { c.StrictMode = strict }
}

// WithObserver sets the LLM observer for observability.
func WithObserver(obs llm.LLMObserver) ExtractorOption {
	return func(c *LLMConfig) { c.Observer = obs }
}

// promptTemplate is filled with the section text.
const promptTemplate = `Extract schedule information from this input and return it in JSON format.
ONLY return the JSON object, no other text.

Required format:
{
    "schedules": [
        {
            "start_date": "YYYY-MM-DD",
            "end_date": "YYYY-MM-DD",
            "day_or_days_of_week": "Full day names",
            "start_time": "HH:MM AM/PM",
            "end_time": "HH:MM AM/PM"
        }
    ]
}

Input text:
`

// BuildPrompt creates the extraction prompt from sanitized section texts.
func BuildPrompt(sections []string, maxContentSize int) string {
	var prompt strings.Builder
	prompt.WriteString(promptTemplate)
	prompt.WriteString(TruncateContent(strings.Join(sections, "\n"), maxContentSize))
	prompt.WriteString("\n")
	return prompt.String()
}

// SanitizeSections flattens any HTML markup in each section to text and
// collapses whitespace. Blank sections are dropped.
func SanitizeSections(sections []string) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		text := s
		if strings.ContainsAny(s, "<>") {
			if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
				text = doc.Text()
			}
		}
		text = strings.Join(strings.Fields(text), " ")
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// TruncateContent limits content size to avoid token limits.
// maxLen of 0 means no limit.
func TruncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "\n\n[Content truncated due to length...]"
}

// StripMarkdownCodeBlock removes markdown code block wrappers from JSON responses.
// Some models wrap their JSON output in ```json ... ``` blocks.
func StripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}

	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
