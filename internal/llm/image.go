package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scribeagent/scribe/internal/httpkit"
)

const openaiImagesURL = "https://api.openai.com/v1/images/generations"

// OpenAIImageClient generates images through the OpenAI images API.
type OpenAIImageClient struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIImageClient creates a new image-generation client.
func NewOpenAIImageClient(apiKey string, logger *slog.Logger) *OpenAIImageClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIImageClient{
		apiKey: apiKey,
		logger: logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			// Image generation regularly takes tens of seconds.
			httpkit.WithTimeout(3 * time.Minute),
		),
	}
}

type openaiImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
}

type openaiImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage returns the generated image bytes and their MIME type.
func (c *OpenAIImageClient) GenerateImage(ctx context.Context, model, prompt string) ([]byte, string, error) {
	jsonData, err := json.Marshal(openaiImageRequest{Model: model, Prompt: prompt, N: 1})
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", openaiImagesURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, "", fmt.Errorf("openai API error %d: %s", resp.StatusCode, errBody)
	}

	var wireResp openaiImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}
	if len(wireResp.Data) == 0 || wireResp.Data[0].B64JSON == "" {
		return nil, "", fmt.Errorf("empty image response")
	}

	img, err := base64.StdEncoding.DecodeString(wireResp.Data[0].B64JSON)
	if err != nil {
		return nil, "", fmt.Errorf("decode image data: %w", err)
	}

	c.logger.Debug("image generated", "model", model, "bytes", len(img))
	return img, "image/png", nil
}
