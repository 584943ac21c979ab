package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

func mockClient(transport *httpmock.MockTransport) *http.Client {
	return &http.Client{Transport: transport}
}

func scheduleRequest() Request {
	return Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "You extract schedules."},
			{Role: RoleUser, Content: "Sat Jan 20 - Mar 9, 9:00 AM - 4:00 PM"},
		},
		Temperature: 0.1,
		JSONSchema:  map[string]any{"type": "object"},
	}
}

func TestCohereProvider_Execute(t *testing.T) {
	transport := httpmock.NewMockTransport()

	var captured cohereRequest
	transport.RegisterResponder(http.MethodPost, "https://api.cohere.com/v2/chat",
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Authorization = %q", got)
			}
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id":            "abc",
				"finish_reason": "COMPLETE",
				"message": map[string]any{
					"role": "assistant",
					"content": []map[string]any{
						{"type": "text", "text": `{"schedules":`},
						{"type": "text", "text": `[]}`},
					},
				},
				"usage": map[string]any{
					"billed_units": map[string]any{"input_tokens": 42, "output_tokens": 7},
				},
			})
		})

	p, err := NewCohereProvider(ProviderConfig{APIKey: "test-key", HTTPClient: mockClient(transport)})
	if err != nil {
		t.Fatalf("NewCohereProvider() error = %v", err)
	}

	resp, err := p.Execute(context.Background(), scheduleRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != `{"schedules":[]}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 7 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if resp.Model != "command-r-08-2024" {
		t.Errorf("Model = %q, want default cohere model", resp.Model)
	}
	if captured.Temperature != 0.1 {
		t.Errorf("temperature sent = %v, want 0.1", captured.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("messages sent = %+v", captured.Messages)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", captured.ResponseFormat)
	}
}

func TestCohereProvider_StatusError(t *testing.T) {
	tests := []struct {
		status       int
		transient    bool
		unauthorized bool
	}{
		{status: http.StatusTooManyRequests, transient: true},
		{status: http.StatusInternalServerError, transient: true},
		{status: http.StatusBadRequest, transient: false},
		{status: http.StatusUnauthorized, unauthorized: true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder(http.MethodPost, "https://api.cohere.com/v2/chat",
				httpmock.NewStringResponder(tt.status, `{"message":"nope"}`))

			p, err := NewCohereProvider(ProviderConfig{APIKey: "k", HTTPClient: mockClient(transport)})
			if err != nil {
				t.Fatal(err)
			}

			_, err = p.Execute(context.Background(), scheduleRequest())
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("Execute() error = %v, want StatusError", err)
			}
			if se.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", se.StatusCode, tt.status)
			}
			if se.Transient() != tt.transient {
				t.Errorf("Transient() = %v, want %v", se.Transient(), tt.transient)
			}
			if IsUnauthorized(err) != tt.unauthorized {
				t.Errorf("IsUnauthorized() = %v, want %v", IsUnauthorized(err), tt.unauthorized)
			}
		})
	}
}

func TestCerebrasProvider_Execute(t *testing.T) {
	transport := httpmock.NewMockTransport()

	var captured map[string]any
	transport.RegisterResponder(http.MethodPost, CerebrasBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1700000000,
				"model":   "llama3.1-8b",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": `{"schedules":[]}`},
				}},
				"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 5, "total_tokens": 35},
			})
		})

	p, err := NewCerebrasProvider(ProviderConfig{APIKey: "test-key", HTTPClient: mockClient(transport)})
	if err != nil {
		t.Fatalf("NewCerebrasProvider() error = %v", err)
	}
	if p.Name() != "cerebras" || p.Model() != "llama3.1-8b" {
		t.Errorf("Name/Model = %s/%s", p.Name(), p.Model())
	}

	resp, err := p.Execute(context.Background(), scheduleRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Content != `{"schedules":[]}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 30 || resp.Usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if _, ok := captured["response_format"]; ok {
		t.Error("cerebras requests should not carry response_format")
	}
	if captured["temperature"] != 0.1 {
		t.Errorf("temperature sent = %v", captured["temperature"])
	}
}

func TestCerebrasProvider_RateLimited(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, CerebrasBaseURL+"/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "slow down", "type": "rate_limit"},
		}))

	p, err := NewCerebrasProvider(ProviderConfig{APIKey: "k", HTTPClient: mockClient(transport)})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Execute(context.Background(), scheduleRequest())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Execute() error = %v, want StatusError", err)
	}
	if se.Provider != "cerebras" || !se.Transient() {
		t.Errorf("StatusError = %+v, want transient cerebras error", se)
	}
}

func TestConstructors_RequireAPIKey(t *testing.T) {
	for _, name := range []string{"cerebras", "cohere", "anthropic", "gemini", "openai"} {
		t.Run(name, func(t *testing.T) {
			_, err := NewProvider(name, ProviderConfig{})
			if !errors.Is(err, ErrMissingAPIKey) {
				t.Errorf("NewProvider(%s) error = %v, want ErrMissingAPIKey", name, err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	if _, err := NewProvider("nope", ProviderConfig{}); err == nil {
		t.Error("expected error for unknown provider")
	}
	for _, name := range AvailableProviders() {
		if GetDefaultModel(name) == "" {
			t.Errorf("provider %s has no default model", name)
		}
		if EnvKey(name) == "" {
			t.Errorf("provider %s has no env key", name)
		}
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("COHERE_API_KEY", "from-env")
	if got := APIKeyFromEnv("cohere"); got != "from-env" {
		t.Errorf("APIKeyFromEnv(cohere) = %q", got)
	}
	t.Setenv("CEREBRAS_API_KEY", "")
	if HasAPIKey("cerebras") {
		t.Error("HasAPIKey(cerebras) should be false when env is empty")
	}
	if HasAPIKey("unknown") {
		t.Error("HasAPIKey(unknown) should be false")
	}
}

func TestMultiObserver(t *testing.T) {
	var calls []string
	m := NewMultiObserver(
		ObserverFunc(func(_ context.Context, e LLMCallEvent) { calls = append(calls, "a:"+e.Provider) }),
		nil,
	)
	m.Add(ObserverFunc(func(_ context.Context, e LLMCallEvent) { calls = append(calls, "b:"+e.Provider) }))

	m.OnLLMCall(context.Background(), LLMCallEvent{Provider: "cohere"})

	if len(calls) != 2 || calls[0] != "a:cohere" || calls[1] != "b:cohere" {
		t.Errorf("calls = %v", calls)
	}
}
