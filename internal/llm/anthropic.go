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

	"github.com/scribeagent/scribe/internal/httpkit"
	"github.com/scribeagent/scribe/internal/message"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"

	anthropicDefaultMaxTokens = 4096
)

// AnthropicClient is a client for the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	// Responses can take a long time before headers arrive (long
	// prompts, extended thinking), so the transport gets a generous
	// response header timeout and no global client timeout.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &AnthropicClient{
		apiKey: apiKey,
		logger: logger.With("provider", "anthropic"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// Anthropic request/response types

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []anthropicContent
}

type anthropicContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"` // for tool_result
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Generate sends one non-streaming generation request.
func (c *AnthropicClient) Generate(ctx context.Context, model string, req Request) (*Result, error) {
	msgs, system := convertToAnthropic(req.Messages)
	if req.System != "" {
		if system != "" {
			system = req.System + "\n\n" + system
		} else {
			system = req.System
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	wireReq := anthropicRequest{
		Model:     model,
		Messages:  msgs,
		System:    system,
		MaxTokens: maxTokens,
		Tools:     convertToolsToAnthropic(req.Tools),
	}

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(msgs),
		"tools", len(wireReq.Tools),
		"system_len", len(system),
	)

	jsonData, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, errBody)
	}

	var wireResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := convertFromAnthropic(&wireResp)
	c.logger.Debug("response received",
		"model", result.Model,
		"stop_reason", wireResp.StopReason,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"function_calls", len(result.Message.FunctionCalls()),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Text())

	return result, nil
}

// Ping verifies the API key with a minimal request.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	req := anthropicRequest{
		Model:     "claude-sonnet-4-20250514",
		Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from Anthropic API: %d", httpResp.StatusCode)
	}
	return nil
}

// convertToAnthropic converts canonical messages to the Anthropic wire
// format. System messages are folded into the separate system prompt;
// function responses become tool_result blocks on user messages.
func convertToAnthropic(messages []message.Message) ([]anthropicMessage, string) {
	var systemParts []string
	var result []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			if text := msg.Text(); text != "" {
				systemParts = append(systemParts, text)
			}

		case message.RoleModel:
			result = append(result, anthropicMessage{
				Role:    "assistant",
				Content: modelBlocks(msg),
			})

		default: // user
			result = append(result, anthropicMessage{
				Role:    "user",
				Content: userBlocks(msg),
			})
		}
	}

	return result, strings.Join(systemParts, "\n\n")
}

func modelBlocks(msg message.Message) []anthropicContent {
	var blocks []anthropicContent
	for _, p := range msg.Parts {
		switch p.Type {
		case message.PartText:
			// Thought-channel text never leaves the process.
			if p.Channel == message.ChannelThought || p.Text == "" {
				continue
			}
			blocks = append(blocks, anthropicContent{Type: "text", Text: p.Text})
		case message.PartFunctionCall:
			fc := p.FunctionCall
			args := any(fc.Args)
			if fc.Args == nil {
				args = map[string]any{}
			}
			id := fc.ID
			if id == "" {
				id = "toolu_" + fc.Name
			}
			blocks = append(blocks, anthropicContent{
				Type:  "tool_use",
				ID:    id,
				Name:  fc.Name,
				Input: args,
			})
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicContent{Type: "text", Text: ""})
	}
	return blocks
}

func userBlocks(msg message.Message) any {
	var blocks []anthropicContent
	for _, p := range msg.Parts {
		switch p.Type {
		case message.PartText:
			blocks = append(blocks, anthropicContent{Type: "text", Text: p.Text})
		case message.PartFunctionResponse:
			fr := p.FunctionResponse
			blocks = append(blocks, anthropicContent{
				Type:      "tool_result",
				ToolUseID: fr.ID,
				Content:   payloadText(fr.Response),
			})
		}
	}
	// A nil slice would serialize as content: null, which the API
	// rejects.
	if len(blocks) == 0 {
		return []anthropicContent{{Type: "text", Text: ""}}
	}
	if len(blocks) == 1 && blocks[0].Type == "text" {
		return blocks[0].Text
	}
	return blocks
}

// payloadText renders a function-response payload for providers that
// expect tool results as text.
func payloadText(payload any) string {
	if s, ok := payload.(string); ok {
		return s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

func convertToolsToAnthropic(tools []Tool) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		params := any(t.Parameters)
		if t.Parameters == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: params,
		})
	}
	return result
}

// convertFromAnthropic converts an Anthropic response into a canonical
// model message.
func convertFromAnthropic(resp *anthropicResponse) *Result {
	var parts []message.Part
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, message.TextPart(block.Text))
			}
		case "tool_use":
			args, ok := block.Input.(map[string]any)
			if !ok {
				if block.Input == nil {
					args = map[string]any{}
				} else {
					args = map[string]any{"_raw": block.Input}
				}
			}
			parts = append(parts, message.FunctionCallPart(message.FunctionCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			}))
		}
	}

	return &Result{
		Message: message.Message{Role: message.RoleModel, Parts: parts},
		Model:   resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
}
