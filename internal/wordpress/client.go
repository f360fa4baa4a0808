// Package wordpress provides a REST client for the WordPress API and the
// builtin site-management abilities built on top of it.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scribeagent/scribe/internal/httpkit"
)

// Client talks to a WordPress site over the wp-json/wp/v2 REST API,
// authenticating with an application password.
type Client struct {
	baseURL    string
	username   string
	appPass    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a WordPress REST client. baseURL is the site root,
// e.g. "https://example.com"; the wp-json prefix is appended per request.
func NewClient(baseURL, username, appPassword string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		appPass:  appPassword,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(3, 2*time.Second),
			httpkit.WithLogger(logger),
		),
		logger: logger.With("component", "wordpress"),
	}
}

// SiteURL returns the configured site root.
func (c *Client) SiteURL() string {
	return c.baseURL
}

// EditURL returns the wp-admin edit link for a post.
func (c *Client) EditURL(postID int) string {
	return fmt.Sprintf("%s/wp-admin/post.php?post=%d&action=edit", c.baseURL, postID)
}

// RenderedField is the WordPress rendered/raw field pair. Raw is only
// populated when the request uses context=edit with sufficient privileges.
type RenderedField struct {
	Raw      string `json:"raw,omitempty"`
	Rendered string `json:"rendered"`
}

// Text returns the raw value when available, otherwise the rendered one.
func (f RenderedField) Text() string {
	if f.Raw != "" {
		return f.Raw
	}
	return f.Rendered
}

// Post is a WordPress post resource.
type Post struct {
	ID            int           `json:"id"`
	Status        string        `json:"status"`
	Link          string        `json:"link"`
	Title         RenderedField `json:"title"`
	Content       RenderedField `json:"content"`
	FeaturedMedia int           `json:"featured_media"`
}

// Media is a WordPress media attachment resource.
type Media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
	MimeType  string `json:"mime_type"`
}

// SearchPosts searches published and unpublished posts of the "post" type,
// returning at most 20 matches.
func (c *Client) SearchPosts(ctx context.Context, search string) ([]Post, error) {
	q := url.Values{}
	q.Set("search", search)
	q.Set("per_page", "20")
	q.Set("status", "publish,draft,pending,private")
	q.Set("context", "edit")

	var posts []Post
	if err := c.get(ctx, "/wp-json/wp/v2/posts?"+q.Encode(), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost retrieves a single post with raw title and content.
func (c *Client) GetPost(ctx context.Context, postID int) (*Post, error) {
	var post Post
	path := fmt.Sprintf("/wp-json/wp/v2/posts/%d?context=edit", postID)
	if err := c.get(ctx, path, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreateDraft creates a new post in draft status. Content is HTML.
func (c *Client) CreateDraft(ctx context.Context, title, contentHTML string) (*Post, error) {
	body := map[string]any{
		"title":   title,
		"content": contentHTML,
		"status":  "draft",
	}
	var post Post
	if err := c.post(ctx, "/wp-json/wp/v2/posts", body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// PublishPost transitions an existing post to publish status.
func (c *Client) PublishPost(ctx context.Context, postID int) (*Post, error) {
	body := map[string]any{"status": "publish"}
	var post Post
	path := fmt.Sprintf("/wp-json/wp/v2/posts/%d", postID)
	if err := c.post(ctx, path, body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UploadMedia uploads raw file bytes to the media library.
func (c *Client) UploadMedia(ctx context.Context, filename, mimeType string, data []byte) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPass)
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	var media Media
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &media, nil
}

// SetFeaturedImage assigns a media attachment as a post's featured image.
func (c *Client) SetFeaturedImage(ctx context.Context, postID, mediaID int) error {
	body := map[string]any{"featured_media": mediaID}
	path := fmt.Sprintf("/wp-json/wp/v2/posts/%d", postID)
	return c.post(ctx, path, body, nil)
}

// UpdatePermalinkStructure writes the site permalink_structure setting.
// An empty structure disables pretty permalinks.
func (c *Client) UpdatePermalinkStructure(ctx context.Context, structure string) error {
	body := map[string]any{"permalink_structure": structure}
	return c.post(ctx, "/wp-json/wp/v2/settings", body, nil)
}

// Ping checks that the REST API is reachable and the credentials work.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/wp-json/wp/v2/users/me?context=edit", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, data any, result any) error {
	reqBody, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPass)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
