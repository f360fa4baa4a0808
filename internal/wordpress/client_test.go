package wordpress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchPosts_QueryAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wp/v2/posts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("search") != "hello" || q.Get("per_page") != "20" || q.Get("context") != "edit" {
			t.Errorf("query = %v", q)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "xxxx yyyy" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 12, "status": "draft", "title": {"raw": "Hello Draft", "rendered": "Hello Draft"}},
			{"id": 7, "status": "publish", "title": {"rendered": "Hello World"}}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "admin", "xxxx yyyy", nil)
	posts, err := client.SearchPosts(context.Background(), "hello")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("posts = %d, want 2", len(posts))
	}
	if posts[0].ID != 12 || posts[0].Title.Text() != "Hello Draft" {
		t.Errorf("first = %+v", posts[0])
	}
	if posts[1].Title.Text() != "Hello World" {
		t.Errorf("rendered fallback = %q", posts[1].Title.Text())
	}
}

func TestCreateDraft_SendsDraftStatus(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 42, "status": "draft", "title": {"raw": "New"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "admin", "pw", nil)
	post, err := client.CreateDraft(context.Background(), "New", "<p>Body</p>")
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if post.ID != 42 {
		t.Errorf("id = %d", post.ID)
	}
	if got["status"] != "draft" || got["title"] != "New" || got["content"] != "<p>Body</p>" {
		t.Errorf("request body = %v", got)
	}
}

func TestUploadMedia_HeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wp/v2/media" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %q", ct)
		}
		if cd := r.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="featured-image-7.png"`) {
			t.Errorf("content disposition = %q", cd)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "PNGDATA" {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 99, "source_url": "http://example.com/wp-content/uploads/featured-image-7.png", "mime_type": "image/png"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "admin", "pw", nil)
	media, err := client.UploadMedia(context.Background(), "featured-image-7.png", "image/png", []byte("PNGDATA"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if media.ID != 99 {
		t.Errorf("media id = %d", media.ID)
	}
}

func TestSetFeaturedImage_PostsMediaID(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wp/v2/posts/7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id": 7}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "admin", "pw", nil)
	if err := client.SetFeaturedImage(context.Background(), 7, 99); err != nil {
		t.Fatalf("set featured image: %v", err)
	}
	if got["featured_media"] != float64(99) {
		t.Errorf("body = %v", got)
	}
}

func TestClient_APIErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"rest_post_invalid_id","message":"Invalid post ID."}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "admin", "pw", nil)
	_, err := client.GetPost(context.Background(), 12345)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "rest_post_invalid_id") {
		t.Errorf("err = %v", err)
	}
}

func TestEditURL(t *testing.T) {
	client := NewClient("https://example.com/", "admin", "pw", nil)
	want := "https://example.com/wp-admin/post.php?post=42&action=edit"
	if got := client.EditURL(42); got != want {
		t.Errorf("EditURL = %q, want %q", got, want)
	}
}
