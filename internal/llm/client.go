// Package llm provides provider clients for text and image generation.
//
// Clients consume and produce the canonical message format; wire-format
// conversion happens at each provider boundary.
package llm

import (
	"context"
	"log/slog"

	"github.com/scribeagent/scribe/internal/message"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Tool is a function declaration offered to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is one generation request.
type Request struct {
	System   string
	Messages []message.Message
	Tools    []Tool

	// MaxTokens caps the response length. Zero means the provider
	// default.
	MaxTokens int
}

// Usage reports provider-neutral token counts.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is the outcome of one generation.
type Result struct {
	Message message.Message
	Model   string
	Usage   Usage
}

// Client is the interface all text-generation providers implement.
type Client interface {
	// Generate sends one non-streaming generation request.
	Generate(ctx context.Context, model string, req Request) (*Result, error)

	// Ping checks whether the provider is reachable.
	Ping(ctx context.Context) error
}

// ImageGenerator produces an image from a text prompt.
type ImageGenerator interface {
	// GenerateImage returns the image bytes and their MIME type.
	GenerateImage(ctx context.Context, model, prompt string) ([]byte, string, error)
}
