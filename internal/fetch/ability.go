package fetch

import (
	"context"
	"fmt"

	"github.com/scribeagent/scribe/internal/ability"
)

// PageMarkdownAbility exposes the fetcher to the model. The returned
// ability is always permitted; page fetching needs no site capability.
func PageMarkdownAbility(f *Fetcher) *ability.Ability {
	return &ability.Ability{
		Name:        "scribe/fetch-page-markdown",
		Description: "Fetches a web page and returns its readable content converted to markdown.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL of the page to fetch.",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Maximum characters to return. Default: %d.", DefaultMaxChars),
				},
			},
			"required": []any{"url"},
		},
		Permission: func(context.Context, map[string]any) (bool, error) {
			return true, nil
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			rawURL, _ := args["url"].(string)
			if rawURL == "" {
				return nil, fmt.Errorf("url is required")
			}
			maxChars := 0
			if mc, ok := args["max_chars"].(float64); ok && mc > 0 {
				maxChars = int(mc)
			}
			result, err := f.Fetch(ctx, rawURL, maxChars)
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	}
}
