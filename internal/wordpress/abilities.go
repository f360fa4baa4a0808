package wordpress

import (
	"context"
	"fmt"

	"github.com/scribeagent/scribe/internal/ability"
)

// Permissions holds the capability flags granted to the chat user. Each
// builtin ability gates on one flag, mirroring the WordPress capability
// it would require.
type Permissions struct {
	ReadPosts     bool `yaml:"read_posts"`
	EditPosts     bool `yaml:"edit_posts"`
	PublishPosts  bool `yaml:"publish_posts"`
	ManageOptions bool `yaml:"manage_options"`
}

// ImageSource generates an image for a prompt, returning the raw bytes and
// their MIME type. Satisfied by the image-model wiring in cmd/scribe.
type ImageSource interface {
	GenerateImage(ctx context.Context, prompt string) (data []byte, mimeType string, err error)
}

var permalinkStructures = []string{
	"disabled",
	"/%year%/%monthnum%/%day%/%postname%/",
	"/%year%/%monthnum%/%postname%/",
	"/%postname%/",
}

// Abilities returns the builtin site-management abilities in their stable
// registration order. images may be nil, in which case featured image
// generation reports that no image model is configured.
func Abilities(client *Client, perms Permissions, images ImageSource) []*ability.Ability {
	return []*ability.Ability{
		searchPostsAbility(client, perms),
		getPostAbility(client, perms),
		createPostDraftAbility(client, perms),
		publishPostAbility(client, perms),
		generateFeaturedImageAbility(client, perms, images),
		setPermalinkStructureAbility(client, perms),
	}
}

func searchPostsAbility(client *Client, perms Permissions) *ability.Ability {
	return &ability.Ability{
		Name:        "scribe/search-posts",
		Description: `Searches through the site's posts (only of the "post" post type) for a given search string and returns an array of up to 20 post IDs and titles.`,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search_string": map[string]any{
					"type":        "string",
					"description": "The string to search for in post titles and content.",
				},
			},
			"required": []any{"search_string"},
		},
		Permission: allow(perms.ReadPosts),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			search, err := stringArg(args, "search_string")
			if err != nil {
				return nil, err
			}
			posts, err := client.SearchPosts(ctx, search)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(posts))
			for _, p := range posts {
				results = append(results, map[string]any{
					"post_id":    p.ID,
					"post_title": p.Title.Text(),
				})
			}
			return results, nil
		},
	}
}

func getPostAbility(client *Client, perms Permissions) *ability.Ability {
	return &ability.Ability{
		Name:        "scribe/get-post",
		Description: "Returns the title, content, and more information of a WordPress post for a given post ID.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_id": map[string]any{
					"type":        "integer",
					"description": "The ID of the post to retrieve.",
				},
			},
			"required": []any{"post_id"},
		},
		Permission: allow(perms.ReadPosts),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			postID, err := intArg(args, "post_id")
			if err != nil {
				return nil, err
			}
			post, err := client.GetPost(ctx, postID)
			if err != nil {
				return nil, fmt.Errorf("post with ID %d not found: %w", postID, err)
			}
			result := map[string]any{
				"post_title":    post.Title.Text(),
				"post_content":  post.Content.Text(),
				"post_status":   post.Status,
				"post_edit_url": client.EditURL(post.ID),
			}
			if post.Status == "publish" {
				result["post_url"] = post.Link
			}
			return result, nil
		},
	}
}

func createPostDraftAbility(client *Client, perms Permissions) *ability.Ability {
	return &ability.Ability{
		Name:        "scribe/create-post-draft",
		Description: `Creates a new WordPress post in "draft" status.`,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_title": map[string]any{
					"type":        "string",
					"description": "The title of the post.",
				},
				"post_content": map[string]any{
					"type":        "string",
					"description": "The content of the post, as Markdown. Use headings, lists, emphasis, and links only.",
				},
			},
			"required": []any{"post_title", "post_content"},
		},
		Permission: allow(perms.EditPosts),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			title, err := stringArg(args, "post_title")
			if err != nil {
				return nil, err
			}
			content, err := stringArg(args, "post_content")
			if err != nil {
				return nil, err
			}
			contentHTML, err := RenderMarkdown(content)
			if err != nil {
				return nil, err
			}
			post, err := client.CreateDraft(ctx, title, contentHTML)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"post_id":       post.ID,
				"post_edit_url": client.EditURL(post.ID),
				"message":       "Post draft created successfully.",
			}, nil
		},
	}
}

func publishPostAbility(client *Client, perms Permissions) *ability.Ability {
	return &ability.Ability{
		Name:        "scribe/publish-post",
		Description: "Publishes an existing WordPress post.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_id": map[string]any{
					"type":        "integer",
					"description": "The ID of the post to publish.",
				},
			},
			"required": []any{"post_id"},
		},
		Permission: allow(perms.PublishPosts),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			postID, err := intArg(args, "post_id")
			if err != nil {
				return nil, err
			}
			post, err := client.PublishPost(ctx, postID)
			if err != nil {
				return nil, fmt.Errorf("post with ID %d not found: %w", postID, err)
			}
			return map[string]any{
				"post_id":       post.ID,
				"post_edit_url": client.EditURL(post.ID),
				"post_url":      post.Link,
				"message":       "Post published successfully.",
			}, nil
		},
	}
}

func generateFeaturedImageAbility(client *Client, perms Permissions, images ImageSource) *ability.Ability {
	return &ability.Ability{
		Name:        "scribe/generate-post-featured-image",
		Description: "Generates a featured image for a given post using an LLM and assigns it to the post.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"post_id": map[string]any{
					"type":        "integer",
					"description": "The ID of the post to generate a featured image for.",
				},
				"instruction": map[string]any{
					"type":        "string",
					"description": "Optional instruction for what kind of image to generate.",
				},
			},
			"required": []any{"post_id"},
		},
		Permission: allow(perms.EditPosts),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			if images == nil {
				return nil, fmt.Errorf("no image generation model is configured")
			}
			postID, err := intArg(args, "post_id")
			if err != nil {
				return nil, err
			}
			post, err := client.GetPost(ctx, postID)
			if err != nil {
				return nil, fmt.Errorf("post with ID %d not found: %w", postID, err)
			}

			prompt := fmt.Sprintf("Generate a featured image for the post titled %q.", post.Title.Text())
			if instruction, _ := args["instruction"].(string); instruction != "" {
				prompt += " Instruction: " + instruction
			} else {
				prompt += " Post content: " + TrimWords(StripTags(post.Content.Text()), 200)
			}

			data, mimeType, err := images.GenerateImage(ctx, prompt)
			if err != nil {
				return nil, fmt.Errorf("image generation failed: %w", err)
			}
			if len(data) == 0 || mimeType == "" {
				return nil, fmt.Errorf("image generation returned empty data")
			}

			filename := fmt.Sprintf("featured-image-%d.%s", post.ID, extensionFor(mimeType))
			media, err := client.UploadMedia(ctx, filename, mimeType, data)
			if err != nil {
				return nil, err
			}
			if err := client.SetFeaturedImage(ctx, post.ID, media.ID); err != nil {
				return nil, err
			}
			return map[string]any{
				"attachment_id": media.ID,
				"message":       "Featured image generated and assigned successfully.",
			}, nil
		},
	}
}

func setPermalinkStructureAbility(client *Client, perms Permissions) *ability.Ability {
	return &ability.Ability{
		Name:        "scribe/set-permalink-structure",
		Description: "Sets the permalink structure for the WordPress site (enables/disables pretty permalinks).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"permalink_structure": map[string]any{
					"type":        "string",
					"description": `The permalink structure to use. All URL paths must end with a trailing slash. Use "disabled" to turn off pretty permalinks.`,
					"enum":        toAnySlice(permalinkStructures),
				},
			},
			"required": []any{"permalink_structure"},
		},
		Permission: allow(perms.ManageOptions),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			structure, err := stringArg(args, "permalink_structure")
			if err != nil {
				return nil, err
			}
			if !allowedStructure(structure) {
				return nil, fmt.Errorf("only the following values are allowed: %v", permalinkStructures)
			}
			if structure == "disabled" {
				structure = ""
			}
			if err := client.UpdatePermalinkStructure(ctx, structure); err != nil {
				return nil, err
			}
			return map[string]any{
				"message": "Permalink structure successfully updated.",
			}, nil
		},
	}
}

func allow(granted bool) func(context.Context, map[string]any) (bool, error) {
	return func(context.Context, map[string]any) (bool, error) {
		return granted, nil
	}
}

func allowedStructure(s string) bool {
	for _, v := range permalinkStructures {
		if s == v {
			return true
		}
	}
	return false
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

// intArg extracts an integer argument. Decoded JSON numbers arrive as
// float64.
func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("missing required argument %q", key)
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
