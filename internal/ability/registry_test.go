package ability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/scribeagent/scribe/internal/message"
)

func noopExecute(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{}, nil
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"scribe/search-posts":         "scribe_search_posts",
		"scribe/get-post":             "scribe_get_post",
		"mcp/github/create-issue":     "mcp_github_create_issue",
		"already_sanitized":           "already_sanitized",
		"scribe/set-permalink-structure": "scribe_set_permalink_structure",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	r := NewRegistry()
	names := []string{"scribe/search-posts", "scribe/get-post", "scribe/create-post-draft"}
	for _, n := range names {
		if err := r.Register(&Ability{Name: n, Execute: noopExecute}); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}

	decls := r.Declarations()
	if len(decls) != 3 {
		t.Fatalf("declarations = %d, want 3", len(decls))
	}
	want := []string{"scribe_search_posts", "scribe_get_post", "scribe_create_post_draft"}
	for i, d := range decls {
		if d.Name != want[i] {
			t.Errorf("declaration %d = %q, want %q", i, d.Name, want[i])
		}
	}

	if ab := r.Find("scribe_get_post"); ab == nil || ab.Name != "scribe/get-post" {
		t.Errorf("Find(scribe_get_post) = %v", ab)
	}
	if ab := r.Find("missing"); ab != nil {
		t.Errorf("Find(missing) = %v, want nil", ab)
	}
	if id, ok := r.IDFor("scribe/search-posts"); !ok || id != "scribe_search_posts" {
		t.Errorf("IDFor = %q, %v", id, ok)
	}
}

func TestRegistry_CollisionRejected(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Ability{Name: "scribe/get-post", Execute: noopExecute}); err != nil {
		t.Fatalf("first register: %v", err)
	}

	// Different source name, same sanitized identifier.
	err := r.Register(&Ability{Name: "scribe/get_post", Execute: noopExecute})
	if err == nil {
		t.Fatal("expected collision error")
	}
	var collision *ErrNameCollision
	if !errors.As(err, &collision) {
		t.Fatalf("error type = %T, want *ErrNameCollision", err)
	}
	if collision.ID != "scribe_get_post" {
		t.Errorf("collision ID = %q", collision.ID)
	}
	if r.Len() != 1 {
		t.Errorf("registry grew despite collision: Len = %d", r.Len())
	}
}

func TestRegistry_RejectsIncomplete(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Ability{Name: "", Execute: noopExecute}); err == nil {
		t.Error("unnamed ability accepted")
	}
	if err := r.Register(&Ability{Name: "scribe/broken"}); err == nil {
		t.Error("ability without handler accepted")
	}
}

func TestDeclarations_EmptySchemaDefaults(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Ability{Name: "scribe/publish-post", Execute: noopExecute})

	d := r.Declarations()[0]
	if d.Parameters["type"] != "object" {
		t.Errorf("parameters type = %v, want object", d.Parameters["type"])
	}
	props, ok := d.Parameters["properties"].(map[string]any)
	if !ok || len(props) != 0 {
		t.Errorf("properties = %v, want empty object", d.Parameters["properties"])
	}
}

func TestInvoke_Success(t *testing.T) {
	ab := &Ability{
		Name: "scribe/get-post",
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"id": args["id"], "title": "Hello"}, nil
		},
	}

	resp := Invoke(context.Background(), ab, message.FunctionCall{
		ID:   "c1",
		Name: "scribe_get_post",
		Args: map[string]any{"id": float64(7)},
	})

	if resp.ID != "c1" || resp.Name != "scribe_get_post" {
		t.Errorf("response identity = %q/%q", resp.ID, resp.Name)
	}
	payload, ok := resp.Response.(map[string]any)
	if !ok || payload["title"] != "Hello" {
		t.Errorf("payload = %#v", resp.Response)
	}
}

func TestInvoke_PermissionDeniedBecomesPayload(t *testing.T) {
	ab := &Ability{
		Name: "scribe/publish-post",
		Permission: func(ctx context.Context, args map[string]any) (bool, error) {
			return false, nil
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			t.Fatal("execute ran despite denial")
			return nil, nil
		},
	}

	resp := Invoke(context.Background(), ab, message.FunctionCall{Name: "scribe_publish_post"})

	s, ok := resp.Response.(string)
	if !ok {
		t.Fatalf("payload = %#v, want string", resp.Response)
	}
	if !strings.Contains(s, "Permission denied") || !strings.Contains(s, "scribe_publish_post") {
		t.Errorf("payload = %q", s)
	}
}

func TestInvoke_UnregisteredAbilityBecomesPayload(t *testing.T) {
	reg := NewRegistry()
	call := message.FunctionCall{ID: "c9", Name: "scribe_delete_site"}

	resp := Invoke(context.Background(), reg.Find(call.Name), call)

	if resp.ID != "c9" || resp.Name != "scribe_delete_site" {
		t.Errorf("response identity = %q/%q", resp.ID, resp.Name)
	}
	want := (&ErrUnavailable{Name: "scribe_delete_site"}).Error()
	if resp.Response != want {
		t.Errorf("payload = %#v, want %q", resp.Response, want)
	}
}

func TestSentinelErrorMessages(t *testing.T) {
	unavailable := &ErrUnavailable{Name: "scribe_fetch_page"}
	if got := unavailable.Error(); got != "function scribe_fetch_page is not available" {
		t.Errorf("ErrUnavailable = %q", got)
	}

	denied := &ErrPermissionDenied{Name: "scribe_publish_post"}
	if got := denied.Error(); got != "Permission denied: you are not allowed to use scribe_publish_post." {
		t.Errorf("ErrPermissionDenied = %q", got)
	}
}

func TestInvoke_ExecutionErrorBecomesPayload(t *testing.T) {
	ab := &Ability{
		Name: "scribe/create-post-draft",
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("title is required")
		},
	}

	resp := Invoke(context.Background(), ab, message.FunctionCall{Name: "scribe_create_post_draft"})

	s, ok := resp.Response.(string)
	if !ok {
		t.Fatalf("payload = %#v, want string", resp.Response)
	}
	if !strings.Contains(s, "title is required") {
		t.Errorf("payload = %q", s)
	}
}

func TestInvoke_PermissionErrorBecomesPayload(t *testing.T) {
	ab := &Ability{
		Name: "scribe/set-permalink-structure",
		Permission: func(ctx context.Context, args map[string]any) (bool, error) {
			return false, fmt.Errorf("capability lookup failed")
		},
		Execute: noopExecute,
	}

	resp := Invoke(context.Background(), ab, message.FunctionCall{Name: "scribe_set_permalink_structure"})

	s, ok := resp.Response.(string)
	if !ok || !strings.Contains(s, "capability lookup failed") {
		t.Errorf("payload = %#v", resp.Response)
	}
}

func TestInvoke_NilArgsPassedAsEmptyMap(t *testing.T) {
	ab := &Ability{
		Name: "scribe/search-posts",
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			if args == nil {
				t.Error("args is nil, want empty map")
			}
			return map[string]any{}, nil
		},
	}
	Invoke(context.Background(), ab, message.FunctionCall{Name: "scribe_search_posts"})
}
