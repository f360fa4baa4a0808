package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scribeagent/scribe/internal/message"
)

func TestOllamaGenerate_WireRoundTrip(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "qwen3:8b",
			"created_at": "2026-08-28T10:00:00Z",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [
					{"function": {"name": "scribe_get_post", "arguments": {"id": 7}}}
				]
			},
			"done": true,
			"prompt_eval_count": 120,
			"eval_count": 18
		}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, nil)
	result, err := client.Generate(context.Background(), "qwen3:8b", Request{
		System:   "You manage a WordPress site.",
		Messages: []message.Message{message.NewTextMessage(message.RoleUser, "show post 7")},
		Tools:    []Tool{{Name: "scribe_get_post", Description: "Get a post"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Request side
	if gotReq.Model != "qwen3:8b" || gotReq.Stream {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("wire messages = %+v", gotReq.Messages)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Type != "function" {
		t.Errorf("wire tools = %+v", gotReq.Tools)
	}

	// Response side
	calls := result.Message.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "scribe_get_post" {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Args["id"] != float64(7) {
		t.Errorf("args = %v", calls[0].Args)
	}
	if result.Usage.InputTokens != 120 || result.Usage.OutputTokens != 18 {
		t.Errorf("usage = %+v", result.Usage)
	}
}

func TestConvertToOllama_FunctionResponsesBecomeToolMessages(t *testing.T) {
	msgs := []message.Message{
		{
			Role: message.RoleUser,
			Parts: []message.Part{
				message.FunctionResponsePart(message.FunctionResponse{
					ID:       "c1",
					Name:     "scribe_search_posts",
					Response: map[string]any{"found": 0},
				}),
				message.FunctionResponsePart(message.FunctionResponse{
					ID:       "c2",
					Name:     "scribe_get_post",
					Response: "not found",
				}),
			},
		},
	}

	wire := convertToOllama("", msgs)
	if len(wire) != 2 {
		t.Fatalf("wire = %d messages, want 2", len(wire))
	}
	if wire[0].Role != "tool" || wire[0].ToolCallID != "c1" || wire[0].Content != `{"found":0}` {
		t.Errorf("first tool message = %+v", wire[0])
	}
	if wire[1].Content != "not found" {
		t.Errorf("string payload = %q", wire[1].Content)
	}
}

func TestParseTextToolCalls_RawObject(t *testing.T) {
	calls := parseTextToolCalls(`{"name": "scribe_get_post", "arguments": {"id": 3}}`)
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Function.Name != "scribe_get_post" {
		t.Errorf("name = %q", calls[0].Function.Name)
	}
	if calls[0].Function.Arguments["id"] != float64(3) {
		t.Errorf("args = %v", calls[0].Function.Arguments)
	}
}

func TestParseTextToolCalls_TaggedAndArray(t *testing.T) {
	content := `<tool_call>[{"name": "scribe_search_posts", "arguments": {"search": "hello"}},
		{"name": "scribe_get_post", "arguments": {"id": 1}}]</tool_call>`

	calls := parseTextToolCalls(content)
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].Function.Name != "scribe_search_posts" || calls[1].Function.Name != "scribe_get_post" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestParseTextToolCalls_PlainTextIsNotACall(t *testing.T) {
	if calls := parseTextToolCalls("The site has three drafts."); calls != nil {
		t.Errorf("calls = %+v, want nil", calls)
	}
	if calls := parseTextToolCalls(""); calls != nil {
		t.Errorf("calls = %+v, want nil for empty content", calls)
	}
}

func TestConvertFromOllama_TextToolCallFallback(t *testing.T) {
	resp := &ollamaChatResponse{
		Model: "qwen3:8b",
		Message: ollamaMessage{
			Role:    "assistant",
			Content: `{"name": "scribe_publish_post", "arguments": {"id": 9}}`,
		},
		Done: true,
	}

	result := convertFromOllama(resp)
	calls := result.Message.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "scribe_publish_post" {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].ID == "" {
		t.Error("expected a synthesized call ID")
	}
	// Content that parsed as a tool call must not survive as text.
	if result.Message.Text() != "" {
		t.Errorf("text = %q, want empty", result.Message.Text())
	}
}

func TestMultiClient_RoutesByProvider(t *testing.T) {
	primary := &fakeClient{model: "primary"}
	fallback := &fakeClient{model: "fallback"}

	m := NewMultiClient(fallback)
	m.AddProvider("ollama", primary)

	if _, err := m.GenerateWith(context.Background(), "ollama", "qwen3:8b", Request{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if primary.calls != 1 || fallback.calls != 0 {
		t.Errorf("primary=%d fallback=%d", primary.calls, fallback.calls)
	}

	if _, err := m.GenerateWith(context.Background(), "unknown", "x", Request{}); err != nil {
		t.Fatalf("generate fallback: %v", err)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.calls)
	}
}

type fakeClient struct {
	model string
	calls int
}

func (f *fakeClient) Generate(ctx context.Context, model string, req Request) (*Result, error) {
	f.calls++
	return &Result{
		Message: message.NewTextMessage(message.RoleModel, "ok"),
		Model:   f.model,
	}, nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
