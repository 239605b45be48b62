package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// mockProvider is a test implementation of Provider
type mockProvider struct {
	name     string
	response *Response
	err      error
	calls    atomic.Int32
	lastReq  *Request
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	m.calls.Add(1)
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{name: "test"}
	r.Register("test", p)

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"existing provider", "test", false},
		{"non-existing provider", "nonexistent", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Get(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrProviderNotFound) {
				t.Errorf("Get() error = %v, want ErrProviderNotFound", err)
			}
			if !tt.wantErr && got != p {
				t.Error("Get() returned different provider")
			}
		})
	}
}

func TestRegistry_SetDefault(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{name: "test"}

	if err := r.SetDefault("test"); err == nil {
		t.Error("SetDefault() should fail for non-existent provider")
	}

	r.Register("test", p)
	if err := r.SetDefault("test"); err != nil {
		t.Fatalf("SetDefault() error = %v", err)
	}
	got, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got != p {
		t.Error("Default() returned wrong provider")
	}
	if r.DefaultName() != "test" {
		t.Errorf("DefaultName() = %q, want %q", r.DefaultName(), "test")
	}
}

func TestRegistry_DefaultAuto(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Default(); !errors.Is(err, ErrNoDefaultProvider) {
		t.Errorf("Default() on empty registry error = %v, want ErrNoDefaultProvider", err)
	}

	r.Register("ollama", &mockProvider{name: "ollama"})
	r.Register("claude", &mockProvider{name: "claude"})
	if err := r.SetDefault("auto"); err != nil {
		t.Fatalf("SetDefault(auto) error = %v", err)
	}

	got, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got.Name() != "claude" {
		t.Errorf("Default() = %q, want %q", got.Name(), "claude")
	}
	if names := r.List(); len(names) != 2 || names[0] != "claude" {
		t.Errorf("List() = %v", names)
	}
}

func TestSystemPrompt(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
		want string
	}{
		{"field only", &Request{System: "field"}, "field"},
		{"message wins", &Request{System: "field", Messages: []Message{{Role: RoleSystem, Content: "msg"}}}, "msg"},
		{"none", &Request{}, ""},
	}
	for _, tt := range tests {
		if got := systemPrompt(tt.req); got != tt.want {
			t.Errorf("%s: systemPrompt() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsRetryableHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"429", &StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"503 wrapped", fmt.Errorf("call: %w", &StatusError{StatusCode: http.StatusServiceUnavailable}), true},
		{"400", &StatusError{StatusCode: http.StatusBadRequest}, false},
	}
	for _, tt := range tests {
		if got := isRetryableHTTPError(tt.err); got != tt.want {
			t.Errorf("%s: isRetryableHTTPError() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOllamaProvider_Generate(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3",
			Message:         ollamaMessage{Role: "assistant", Content: "Great work!"},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       4,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: server.URL})
	resp, err := p.Generate(context.Background(), &Request{
		System:      "be kind",
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		MaxTokens:   100,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Great work!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Great work!")
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if got.Stream {
		t.Error("request should not stream")
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("Messages = %+v, want system then user", got.Messages)
	}
	if got.Options == nil || got.Options.NumPredict != 100 {
		t.Errorf("Options = %+v", got.Options)
	}
}

func TestOllamaProvider_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantEmpty  bool
	}{
		{"server error", http.StatusServiceUnavailable, `overloaded`, http.StatusServiceUnavailable, false},
		{"empty content", http.StatusOK, `{"message":{"role":"assistant","content":""},"done":true}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			p := NewOllamaProvider(OllamaConfig{BaseURL: server.URL})
			_, err := p.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			if err == nil {
				t.Fatal("Generate() should fail")
			}
			var se *StatusError
			if tt.wantStatus != 0 && (!errors.As(err, &se) || se.StatusCode != tt.wantStatus) {
				t.Errorf("Generate() error = %v, want status %d", err, tt.wantStatus)
			}
			if tt.wantEmpty && !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
			}
		})
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Nice job"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
		}`)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}
	resp, err := p.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Nice job" || resp.FinishReason != "stop" {
		t.Errorf("Generate() = %+v", resp)
	}
	if resp.Usage.InputTokens != 9 {
		t.Errorf("InputTokens = %d, want 9", resp.Usage.InputTokens)
	}
}

func TestOpenAIProvider_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "slow down", "type": "rate_limit"}}`)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}
	_, err = p.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !isRetryableHTTPError(err) {
		t.Errorf("Generate() error = %v, want retryable status error", err)
	}
}

func TestClaudeProvider_Generate(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Errorf("x-api-key = %q", r.Header.Get("X-Api-Key"))
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Keep going"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 7, "output_tokens": 2}
		}`)
	}))
	defer server.Close()

	p, err := NewClaudeProvider(ClaudeConfig{APIKey: "key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClaudeProvider() error = %v", err)
	}
	resp, err := p.Generate(context.Background(), &Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "coach"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Keep going" || resp.FinishReason != "end_turn" {
		t.Errorf("Generate() = %+v", resp)
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("messages = %v, want only the user turn", body["messages"])
	}
	if body["system"] == nil {
		t.Error("system prompt was not sent")
	}
}

func TestProviderConstructors_RequireKey(t *testing.T) {
	if _, err := NewClaudeProvider(ClaudeConfig{}); err == nil {
		t.Error("NewClaudeProvider() should require an API key")
	}
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Error("NewOpenAIProvider() should require an API key")
	}
	if _, err := NewGeminiProvider(context.Background(), GeminiConfig{}); err == nil {
		t.Error("NewGeminiProvider() should require an API key")
	}
}

func TestResilientProvider_PassThrough(t *testing.T) {
	mock := &mockProvider{name: "mock", response: &Response{Content: "ok"}}
	rp := NewResilientProvider(mock, DefaultResilientConfig())
	defer rp.Close()

	if rp.Name() != "mock" {
		t.Errorf("Name() = %q, want %q", rp.Name(), "mock")
	}
	resp, err := rp.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want %q", resp.Content, "ok")
	}
}

func TestResilientProvider_CircuitOpens(t *testing.T) {
	mock := &mockProvider{name: "mock", err: &StatusError{Provider: "mock", StatusCode: http.StatusBadGateway, Err: errors.New("down")}}
	rp := NewResilientProvider(mock, ResilientConfig{
		EnableCircuitBreaker: true,
		FailureThreshold:     2,
	})
	defer rp.Close()

	for i := 0; i < 4; i++ {
		if _, err := rp.Generate(context.Background(), &Request{}); err == nil {
			t.Fatalf("Generate() #%d should fail", i)
		}
	}
	if got := mock.calls.Load(); got != 2 {
		t.Errorf("provider calls = %d, want 2 before the breaker opened", got)
	}
}

func TestResilientProvider_NoRetryByDefault(t *testing.T) {
	mock := &mockProvider{name: "mock", err: &StatusError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("busy")}}
	rp := NewResilientProvider(mock, ResilientConfig{})

	if _, err := rp.Generate(context.Background(), &Request{}); err == nil {
		t.Fatal("Generate() should fail")
	}
	if got := mock.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestContentGenerator(t *testing.T) {
	mock := &mockProvider{name: "mock", response: &Response{Content: "Well done"}}
	g := NewContentGenerator(mock)

	resp, err := g.GenerateContent(context.Background(), domain.ContentRequest{
		Prompt:      "feedback please",
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if resp.Content != "Well done" {
		t.Errorf("Content = %q, want %q", resp.Content, "Well done")
	}
	if mock.lastReq.MaxTokens != 500 || mock.lastReq.System == "" {
		t.Errorf("request = %+v", mock.lastReq)
	}
	if len(mock.lastReq.Messages) != 1 || mock.lastReq.Messages[0].Content != "feedback please" {
		t.Errorf("Messages = %+v", mock.lastReq.Messages)
	}

	mock.err = errors.New("offline")
	if _, err := g.GenerateContent(context.Background(), domain.ContentRequest{Prompt: "x"}); err == nil {
		t.Error("GenerateContent() should surface provider errors")
	}
}
