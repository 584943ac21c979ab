package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jmylchreest/coursesched/internal/logger"
)

// GeminiProvider implements Provider for Google Gemini.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider. Call Close when done.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel("gemini")
	}

	return &GeminiProvider{client: client, model: model}, nil
}

// Execute sends a generate-content request to Gemini.
func (p *GeminiProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	m := p.client.GenerativeModel(p.model)
	m.SetTemperature(float32(req.Temperature))
	m.SetMaxOutputTokens(int32(defaultMaxTokens(req.MaxTokens)))
	if req.JSONSchema != nil {
		m.ResponseMIMEType = "application/json"
	}

	var parts []genai.Part
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
		default:
			parts = append(parts, genai.Text(msg.Content))
		}
	}

	logger.Debug("sending generate content", "provider", "gemini", "model", p.model, "parts", len(parts))

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("gemini API error: %w", &StatusError{
				Provider:   "gemini",
				StatusCode: apiErr.Code,
				Body:       apiErr.Message,
			})
		}
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &Response{
		Content:      sb.String(),
		FinishReason: resp.Candidates[0].FinishReason.String(),
		Usage:        usage,
		Model:        p.model,
		Duration:     time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

var _ Provider = (*GeminiProvider)(nil)
