package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/version"
)

// CohereBaseURL is the Cohere API root.
const CohereBaseURL = "https://api.cohere.com"

// CohereProvider talks to the Cohere v2 chat API over plain HTTP.
type CohereProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewCohereProvider creates a new Cohere provider.
func NewCohereProvider(cfg ProviderConfig) (*CohereProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere: %w", ErrMissingAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = CohereBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel("cohere")
	}

	return &CohereProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		client:  cfg.httpClient(),
	}, nil
}

type cohereRequest struct {
	Model          string                `json:"model"`
	Messages       []cohereMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *cohereResponseFormat `json:"response_format,omitempty"`
}

type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereResponseFormat struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema,omitempty"`
}

type cohereResponse struct {
	ID           string `json:"id"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Usage struct {
		BilledUnits struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"usage"`
}

// Execute sends a chat request to Cohere.
func (p *CohereProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]cohereMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, cohereMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	cohereReq := cohereRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONSchema != nil {
		cohereReq.ResponseFormat = &cohereResponseFormat{Type: "json_object", JSONSchema: req.JSONSchema}
	}

	body, err := json.Marshal(cohereReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	logger.Debug("sending chat request", "provider", "cohere", "model", p.model, "messages", len(messages))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cohere request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Provider: "cohere", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var cohereResp cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&cohereResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var sb strings.Builder
	for _, part := range cohereResp.Message.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}

	return &Response{
		Content:      sb.String(),
		FinishReason: cohereResp.FinishReason,
		Usage: Usage{
			InputTokens:  int(cohereResp.Usage.BilledUnits.InputTokens),
			OutputTokens: int(cohereResp.Usage.BilledUnits.OutputTokens),
		},
		Model:    p.model,
		Duration: time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *CohereProvider) Name() string {
	return "cohere"
}

// Model returns the configured model name.
func (p *CohereProvider) Model() string {
	return p.model
}

var _ Provider = (*CohereProvider)(nil)
