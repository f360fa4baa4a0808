package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribeagent/scribe/internal/httpkit"
	"github.com/scribeagent/scribe/internal/message"
)

// OllamaClient is a client for the Ollama chat API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("provider", "ollama"),
		httpClient: httpkit.NewClient(
			// Large models with many tools need time.
			httpkit.WithTimeout(5 * time.Minute),
		),
	}
}

// Ollama wire types

type ollamaMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type ollamaToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"` // Ollama returns an object, not a string
	} `json:"function"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function Tool   `json:"function"`
}

type ollamaChatResponse struct {
	Model     string        `json:"model"`
	CreatedAt string        `json:"created_at"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

// Generate sends one non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, model string, req Request) (*Result, error) {
	wireReq := ollamaChatRequest{
		Model:    model,
		Messages: convertToOllama(req.System, req.Messages),
		Stream:   false,
		Tools:    convertToolsToOllama(req.Tools),
	}

	jsonData, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		return nil, fmt.Errorf("ollama API error %d: %s", resp.StatusCode, errBody)
	}

	var wireResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := convertFromOllama(&wireResp)
	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"function_calls", len(result.Message.FunctionCalls()),
	)
	return result, nil
}

// Ping checks if Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}
	return nil
}

// ListModels returns the models the Ollama server has available.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// convertToOllama flattens canonical messages into the OpenAI-ish chat
// shape Ollama speaks. Function responses become role=tool messages.
func convertToOllama(system string, messages []message.Message) []ollamaMessage {
	var result []ollamaMessage
	if system != "" {
		result = append(result, ollamaMessage{Role: "system", Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			result = append(result, ollamaMessage{Role: "system", Content: msg.Text()})

		case message.RoleModel:
			m := ollamaMessage{Role: "assistant", Content: msg.Text()}
			for _, call := range msg.FunctionCalls() {
				tc := ollamaToolCall{ID: call.ID}
				tc.Function.Name = call.Name
				tc.Function.Arguments = call.Args
				m.ToolCalls = append(m.ToolCalls, tc)
			}
			result = append(result, m)

		default: // user
			responses := functionResponses(msg)
			if len(responses) == 0 {
				result = append(result, ollamaMessage{Role: "user", Content: msg.Text()})
				continue
			}
			for _, fr := range responses {
				result = append(result, ollamaMessage{
					Role:       "tool",
					Content:    payloadText(fr.Response),
					ToolCallID: fr.ID,
				})
			}
		}
	}
	return result
}

func functionResponses(msg message.Message) []message.FunctionResponse {
	var out []message.FunctionResponse
	for _, p := range msg.Parts {
		if p.Type == message.PartFunctionResponse && p.FunctionResponse != nil {
			out = append(out, *p.FunctionResponse)
		}
	}
	return out
}

func convertToolsToOllama(tools []Tool) []ollamaTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]ollamaTool, 0, len(tools))
	for _, t := range tools {
		if t.Parameters == nil {
			t.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, ollamaTool{Type: "function", Function: t})
	}
	return result
}

// convertFromOllama converts an Ollama response into a canonical model
// message. Models that emit tool calls as JSON text instead of the
// native field are handled by parseTextToolCalls.
func convertFromOllama(resp *ollamaChatResponse) *Result {
	toolCalls := resp.Message.ToolCalls
	content := resp.Message.Content
	if len(toolCalls) == 0 && content != "" {
		if parsed := parseTextToolCalls(content); len(parsed) > 0 {
			toolCalls = parsed
			content = ""
		}
	}

	var parts []message.Part
	if content != "" {
		parts = append(parts, message.TextPart(content))
	}
	for _, tc := range toolCalls {
		// Local models often omit call IDs; responses are paired by
		// ID downstream, so synthesize one.
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		parts = append(parts, message.FunctionCallPart(message.FunctionCall{
			ID:   id,
			Name: tc.Function.Name,
			Args: tc.Function.Arguments,
		}))
	}

	return &Result{
		Message: message.Message{Role: message.RoleModel, Parts: parts},
		Model:   resp.Model,
		Usage: Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		},
	}
}

// parseTextToolCalls attempts to extract tool calls from content text.
// Many local models output tool calls as JSON in the content rather
// than using the native tool_calls field. Handled formats:
//   - Raw JSON object: {"name": "...", "arguments": {...}}
//   - JSON array: [{"name": "...", "arguments": {...}}]
//   - Tagged: <tool_call>...</tool_call>
func parseTextToolCalls(content string) []ollamaToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.Contains(content, "<tool_call>") {
		start := strings.Index(content, "<tool_call>")
		end := strings.Index(content, "</tool_call>")
		if start != -1 && end > start {
			content = strings.TrimSpace(content[start+len("<tool_call>") : end])
		} else if start != -1 {
			content = strings.TrimSpace(content[start+len("<tool_call>"):])
		}
	}

	var calls []struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(content), &calls); err == nil && len(calls) > 0 {
		result := make([]ollamaToolCall, len(calls))
		for i, c := range calls {
			result[i].Function.Name = c.Name
			result[i].Function.Arguments = c.Arguments
		}
		return result
	}

	var single struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(content), &single); err == nil && single.Name != "" {
		var tc ollamaToolCall
		tc.Function.Name = single.Name
		tc.Function.Arguments = single.Arguments
		return []ollamaToolCall{tc}
	}

	return nil
}
